package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ronaldomelofz/conversoraudio/internal/engine"
	"github.com/ronaldomelofz/conversoraudio/internal/transcribe"
)

func sampleResult() transcribe.Result {
	return transcribe.Result{
		Text:     "primeira frase. segunda frase.",
		Language: "pt",
		Segments: []engine.Segment{
			{Start: 0, End: 4.5, Text: "primeira frase."},
			{Start: 4.5, End: 65.2, Text: "segunda frase."},
		},
	}
}

func sampleContext(dir string) RunContext {
	return RunContext{
		OriginalFile:      "sample.wav",
		OutputDir:         dir,
		Model:             "tiny",
		Timestamp:         time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		FileSizeMB:        1.5,
		IncludeTimestamps: true,
	}
}

func TestWriteArtifactNaming(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{}

	path, err := w.Write(sampleResult(), Stats{}, sampleContext(dir))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "sample_transcricao.txt" {
		t.Errorf("unexpected artifact name %s", filepath.Base(path))
	}
}

func TestWriteCollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{}

	first, err := w.Write(sampleResult(), Stats{}, sampleContext(dir))
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	firstContent, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}

	second, err := w.Write(sampleResult(), Stats{}, sampleContext(dir))
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if filepath.Base(second) != "sample_transcricao_1.txt" {
		t.Errorf("expected _1 suffix, got %s", filepath.Base(second))
	}

	third, err := w.Write(sampleResult(), Stats{}, sampleContext(dir))
	if err != nil {
		t.Fatalf("third write failed: %v", err)
	}
	if filepath.Base(third) != "sample_transcricao_2.txt" {
		t.Errorf("expected _2 suffix, got %s", filepath.Base(third))
	}

	// The first artifact must remain untouched.
	after, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(firstContent) {
		t.Error("first artifact was modified by a later write")
	}
}

func TestWriteLabelSubdirAndName(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{}
	rc := sampleContext(dir)
	rc.Label = "reuniao"

	path, err := w.Write(sampleResult(), Stats{}, rc)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "reuniao" {
		t.Errorf("expected label subdirectory, got %s", path)
	}
	if filepath.Base(path) != "sample_reuniao_transcricao.txt" {
		t.Errorf("unexpected labeled name %s", filepath.Base(path))
	}
}

func TestReportLayout(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{}
	stats := ComputeStats(sampleResult().Text, 65.2, 10.0)

	path, err := w.Write(sampleResult(), stats, sampleContext(dir))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)

	for _, want := range []string{
		"Arquivo Original: sample.wav",
		"Modelo Whisper: tiny",
		"Idioma Detectado: pt",
		"TRANSCRIÇÃO COMPLETA:",
		"primeira frase. segunda frase.",
		"TRANSCRIÇÃO COM TIMESTAMPS:",
		"[00:00 - 00:04] primeira frase.",
		"[00:04 - 01:05] segunda frase.",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// Segments must be emitted in original order.
	if strings.Index(content, "primeira frase.") > strings.Index(content, "segunda frase.") {
		t.Error("segment order not preserved")
	}
}

func TestReportSkipsTimestampSection(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{}
	rc := sampleContext(dir)
	rc.IncludeTimestamps = false

	path, err := w.Write(sampleResult(), Stats{}, rc)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "TRANSCRIÇÃO COM TIMESTAMPS") {
		t.Error("timestamp section present despite IncludeTimestamps=false")
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats("uma duas três", 60.0, 10.0)
	if stats.Words != 3 {
		t.Errorf("expected 3 words, got %d", stats.Words)
	}
	if stats.Chars != 13 {
		t.Errorf("expected 13 chars, got %d", stats.Chars)
	}
	if stats.SpeedRatio != 6.0 {
		t.Errorf("expected speed ratio 6.0, got %f", stats.SpeedRatio)
	}

	zero := ComputeStats("", 10.0, 0)
	if zero.SpeedRatio != 0 {
		t.Errorf("expected 0 ratio for zero processing time, got %f", zero.SpeedRatio)
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{4.9, "00:04"},
		{65.2, "01:05"},
		{3599, "59:59"},
	}
	for _, c := range cases {
		if got := formatClock(c.in); got != c.want {
			t.Errorf("formatClock(%f) = %s, want %s", c.in, got, c.want)
		}
	}
}
