package ingest

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFromUploadSupportedFormats(t *testing.T) {
	v := Validator{}
	data := []byte("fake audio payload")

	for _, ext := range SupportedFormats {
		src, err := v.FromUpload("sample"+ext, data)
		if err != nil {
			t.Errorf("expected %s to be accepted, got error: %v", ext, err)
			continue
		}
		if src.Ext != ext {
			t.Errorf("expected ext %s, got %s", ext, src.Ext)
		}
		if len(src.Data) != len(data) {
			t.Errorf("expected %d bytes buffered, got %d", len(data), len(src.Data))
		}
	}
}

func TestFromUploadRejectsUnsupportedFormat(t *testing.T) {
	v := Validator{}

	for _, name := range []string{"notes.txt", "movie.avi", "noext"} {
		_, err := v.FromUpload(name, []byte("data"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat for %s, got %v", name, err)
		}
	}
}

func TestFromUploadCaseInsensitiveExtension(t *testing.T) {
	v := Validator{}
	src, err := v.FromUpload("SAMPLE.WAV", []byte("data"))
	if err != nil {
		t.Fatalf("uppercase extension rejected: %v", err)
	}
	if src.Ext != ".wav" {
		t.Errorf("expected normalized ext .wav, got %s", src.Ext)
	}
}

func TestFromUploadPayloadTooLarge(t *testing.T) {
	v := Validator{MaxBytes: 10}

	_, err := v.FromUpload("big.mp3", make([]byte, 11))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	// At the limit is accepted.
	if _, err := v.FromUpload("ok.mp3", make([]byte, 10)); err != nil {
		t.Fatalf("payload at limit rejected: %v", err)
	}
}

func TestFromBase64(t *testing.T) {
	v := Validator{}
	payload := []byte("audio bytes")

	src, err := v.FromBase64("clip.ogg", base64.StdEncoding.EncodeToString(payload))
	if err != nil {
		t.Fatalf("valid base64 rejected: %v", err)
	}
	if string(src.Data) != string(payload) {
		t.Errorf("decoded payload mismatch: %q", src.Data)
	}

	_, err = v.FromBase64("clip.ogg", "!!!not base64!!!")
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for invalid base64, got %v", err)
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.wav")
	if err := os.WriteFile(path, []byte("wav bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := Validator{}.FromPath(path)
	if err != nil {
		t.Fatalf("existing file rejected: %v", err)
	}
	if src.Filename != "sample.wav" {
		t.Errorf("expected filename sample.wav, got %s", src.Filename)
	}

	_, err = Validator{}.FromPath(filepath.Join(dir, "missing.wav"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("text"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = Validator{}.FromPath(txt)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for .txt, got %v", err)
	}
}
