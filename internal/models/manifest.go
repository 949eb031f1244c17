// Package models manages Whisper ggml model weights on disk.
package models

// Variant describes one downloadable Whisper model preset.
type Variant struct {
	Name      string `json:"name"`
	File      string `json:"file"`
	URL       string `json:"url"`
	SizeLabel string `json:"size"`
	Speed     string `json:"speed"`
	Accuracy  string `json:"accuracy"`
}

const ggmlBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Manifest is the fixed set of supported model variants, ordered from
// fastest to most accurate.
var Manifest = []Variant{
	{Name: "tiny", File: "ggml-tiny.bin", URL: ggmlBaseURL + "ggml-tiny.bin", SizeLabel: "~39 MB", Speed: "Fastest", Accuracy: "Lower"},
	{Name: "base", File: "ggml-base.bin", URL: ggmlBaseURL + "ggml-base.bin", SizeLabel: "~74 MB", Speed: "Fast", Accuracy: "Good"},
	{Name: "small", File: "ggml-small.bin", URL: ggmlBaseURL + "ggml-small.bin", SizeLabel: "~244 MB", Speed: "Medium", Accuracy: "Better"},
	{Name: "medium", File: "ggml-medium.bin", URL: ggmlBaseURL + "ggml-medium.bin", SizeLabel: "~769 MB", Speed: "Slow", Accuracy: "High"},
	{Name: "large", File: "ggml-large-v3.bin", URL: ggmlBaseURL + "ggml-large-v3.bin", SizeLabel: "~1550 MB", Speed: "Slowest", Accuracy: "Highest"},
}

// Names returns the variant names in manifest order.
func Names() []string {
	names := make([]string, len(Manifest))
	for i, v := range Manifest {
		names[i] = v.Name
	}
	return names
}

// Lookup finds a variant by name.
func Lookup(name string) (Variant, bool) {
	for _, v := range Manifest {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// IsValid reports whether name is a supported variant.
func IsValid(name string) bool {
	_, ok := Lookup(name)
	return ok
}
