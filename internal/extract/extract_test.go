package extract

import (
	"context"
	"strings"
	"testing"
)

func TestSourceTextSkipsImages(t *testing.T) {
	text, err := SourceText(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47}, "image/png", "q01.png")
	if err != nil {
		t.Fatalf("image input should not error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text for image, got %q", text)
	}
}

func TestSourceTextRejectsEmptyPDF(t *testing.T) {
	if _, err := SourceText(context.Background(), nil, "application/pdf", "q01.pdf"); err == nil {
		t.Fatal("expected error for empty pdf payload")
	}
}

func TestSourceTextRejectsCorruptPDF(t *testing.T) {
	_, err := SourceText(context.Background(), []byte("not a pdf"), "application/pdf", "q01.pdf")
	if err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
	if !strings.Contains(err.Error(), "parse pdf") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeMimeTypeFallsBackToExtension(t *testing.T) {
	if got := normalizeMimeType("application/octet-stream", "scan.pdf"); got != "application/pdf" {
		t.Fatalf("expected pdf from extension, got %q", got)
	}
	if got := normalizeMimeType("Image/PNG; charset=binary", "q.png"); got != "image/png" {
		t.Fatalf("expected lowercased cleaned mime, got %q", got)
	}
}
