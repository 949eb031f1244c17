// Package report persists transcription artifacts: collision-free output
// paths plus a fixed-layout human-readable report.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ronaldomelofz/conversoraudio/internal/transcribe"
)

// ErrArtifactWrite wraps filesystem failures during report writing. Partial
// output is removed before the error is returned.
var ErrArtifactWrite = errors.New("report: artifact write failed")

// RunContext carries the per-run metadata serialized into the report header.
type RunContext struct {
	OriginalFile string
	Label        string
	OutputDir    string
	Model        string
	Timestamp    time.Time
	FileSizeMB   float64
	// IncludeTimestamps controls the segment listing section.
	IncludeTimestamps bool
}

// Stats are derived per run and never persisted outside a report.
type Stats struct {
	AudioDuration  float64
	ProcessingTime float64
	SpeedRatio     float64
	Chars          int
	Words          int
}

// ComputeStats derives run statistics from the transcript and timings.
func ComputeStats(text string, audioDuration, processingTime float64) Stats {
	ratio := 0.0
	if processingTime > 0 {
		ratio = audioDuration / processingTime
	}
	return Stats{
		AudioDuration:  audioDuration,
		ProcessingTime: processingTime,
		SpeedRatio:     ratio,
		Chars:          len([]rune(text)),
		Words:          len(strings.Fields(text)),
	}
}

// Writer serializes reports. The collision counter is race-free within one
// process; cross-process writers to the same directory are not coordinated.
type Writer struct {
	mu sync.Mutex
}

// Write serializes the result and stats into a new artifact and returns its
// path. Existing artifacts are never overwritten: colliding names get an
// increasing numeric suffix.
func (w *Writer) Write(res transcribe.Result, stats Stats, rc RunContext) (string, error) {
	dir := rc.OutputDir
	if rc.Label != "" {
		dir = filepath.Join(dir, rc.Label)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %v", ErrArtifactWrite, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, path, err := createUnique(dir, rc.OriginalFile, rc.Label)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	if _, err := f.WriteString(render(res, stats, rc)); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}
	return path, nil
}

// createUnique opens the first non-existing candidate path with O_EXCL so a
// cross-process collision fails instead of silently overwriting.
func createUnique(dir, original, label string) (*os.File, string, error) {
	stem := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base := stem + "_transcricao"
	if label != "" {
		base = stem + "_" + label + "_transcricao"
	}

	for counter := 0; ; counter++ {
		name := base + ".txt"
		if counter > 0 {
			name = fmt.Sprintf("%s_%d.txt", base, counter)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", err
		}
	}
}

func render(res transcribe.Result, stats Stats, rc RunContext) string {
	var b strings.Builder
	rule := strings.Repeat("=", 80)
	sep := strings.Repeat("-", 60)

	b.WriteString("TRANSCRIÇÃO AVANÇADA\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Arquivo Original: %s\n", rc.OriginalFile)
	fmt.Fprintf(&b, "Modelo Whisper: %s\n", rc.Model)
	fmt.Fprintf(&b, "Idioma Detectado: %s\n", res.Language)
	if rc.Label != "" {
		fmt.Fprintf(&b, "Label: %s\n", rc.Label)
	}
	fmt.Fprintf(&b, "Data/Hora: %s\n", rc.Timestamp.Format("02/01/2006 15:04:05"))
	fmt.Fprintf(&b, "Tempo Processamento: %.1fs (%.1f min)\n", stats.ProcessingTime, stats.ProcessingTime/60)
	fmt.Fprintf(&b, "Duração Áudio: %.1fs (%.1f min)\n", stats.AudioDuration, stats.AudioDuration/60)
	fmt.Fprintf(&b, "Velocidade: %.1fx tempo real\n", stats.SpeedRatio)
	fmt.Fprintf(&b, "Arquivo: %.2f MB\n", rc.FileSizeMB)
	fmt.Fprintf(&b, "Estatísticas: %d chars, %d palavras\n", stats.Chars, stats.Words)
	b.WriteString(rule + "\n\n")

	b.WriteString("TRANSCRIÇÃO COMPLETA:\n")
	b.WriteString(sep + "\n")
	b.WriteString(strings.TrimSpace(res.Text))
	b.WriteString("\n\n")

	if rc.IncludeTimestamps && len(res.Segments) > 0 {
		b.WriteString("TRANSCRIÇÃO COM TIMESTAMPS:\n")
		b.WriteString(sep + "\n")
		for _, seg := range res.Segments {
			fmt.Fprintf(&b, "[%s - %s] %s\n", formatClock(seg.Start), formatClock(seg.End), strings.TrimSpace(seg.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString("Gerado por: Conversor Audio\n")
	return b.String()
}

// formatClock renders seconds as mm:ss.
func formatClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
