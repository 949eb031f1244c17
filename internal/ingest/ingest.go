package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors surfaced to callers; the HTTP layer maps all of them to 400.
var (
	ErrUnsupportedFormat = errors.New("ingest: unsupported audio format")
	ErrPayloadTooLarge   = errors.New("ingest: payload exceeds maximum size")
	ErrMalformedPayload  = errors.New("ingest: malformed payload")
)

// DefaultMaxBytes matches the service upload policy (400 MB).
const DefaultMaxBytes = 400 << 20

// SupportedFormats is the fixed set of accepted file extensions.
var SupportedFormats = []string{".mp3", ".mp4", ".wav", ".m4a", ".ogg", ".flac", ".aac", ".wma", ".webm"}

// Source is one validated audio input. It is immutable after creation and
// discarded once decoded.
type Source struct {
	Data     []byte
	Filename string
	Ext      string
}

// SizeMB returns the payload size in megabytes.
func (s *Source) SizeMB() float64 {
	return float64(len(s.Data)) / (1024 * 1024)
}

// Validator buffers and validates raw inputs into Sources.
type Validator struct {
	// MaxBytes caps accepted payload size; zero means DefaultMaxBytes.
	MaxBytes int64
}

func (v Validator) maxBytes() int64 {
	if v.MaxBytes > 0 {
		return v.MaxBytes
	}
	return DefaultMaxBytes
}

// FromPath reads an existing file from disk.
func (v Validator) FromPath(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !FormatSupported(ext) {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(SupportedFormats, ", "))
	}
	if info.Size() > v.maxBytes() {
		return nil, fmt.Errorf("%w: %.1f MB (max %d MB)", ErrPayloadTooLarge, float64(info.Size())/(1024*1024), v.maxBytes()>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &Source{Data: data, Filename: filepath.Base(path), Ext: ext}, nil
}

// FromUpload validates an already-buffered payload, e.g. a multipart upload.
func (v Validator) FromUpload(filename string, data []byte) (*Source, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: empty filename", ErrMalformedPayload)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !FormatSupported(ext) {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(SupportedFormats, ", "))
	}
	if int64(len(data)) > v.maxBytes() {
		return nil, fmt.Errorf("%w: %.1f MB (max %d MB)", ErrPayloadTooLarge, float64(len(data))/(1024*1024), v.maxBytes()>>20)
	}
	return &Source{Data: data, Filename: filepath.Base(filename), Ext: ext}, nil
}

// FromBase64 decodes a base64 payload and validates it under the given filename.
func (v Validator) FromBase64(filename, content string) (*Source, error) {
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedPayload, err)
	}
	return v.FromUpload(filename, data)
}

// FormatSupported reports whether ext belongs to the supported set.
func FormatSupported(ext string) bool {
	for _, s := range SupportedFormats {
		if ext == s {
			return true
		}
	}
	return false
}
