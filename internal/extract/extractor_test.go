package extract

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDocumentName(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"example.pdf", "example"},
		{"/data/reports/Q3 Summary.PDF", "Q3 Summary"},
		{"notes.pdf.bak", "notes.pdf.bak"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := DocumentName(tt.path); got != tt.want {
			t.Errorf("DocumentName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestExtract_TextAndImages(t *testing.T) {
	dir := t.TempDir()
	data, jpegBytes := figurePDF(t)
	path := writeFile(t, dir, "sample.pdf", data)

	imagesDir := filepath.Join(dir, "images")
	e := New(imagesDir, quietLogger())

	doc, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if doc.Name != "sample" {
		t.Errorf("Name = %q, want %q", doc.Name, "sample")
	}
	for _, want := range []string{"Figure 1: traffic flow", "Document heading"} {
		if !strings.Contains(doc.FullText, want) {
			t.Errorf("FullText = %q, want it to contain %q", doc.FullText, want)
		}
	}

	if len(doc.Images) != 2 {
		t.Fatalf("got %d images, want 2", len(doc.Images))
	}

	gray := doc.Images[0]
	if want := filepath.Join(imagesDir, "sample_page1_img1.png"); gray.ImagePath != want {
		t.Errorf("ImagePath = %q, want %q", gray.ImagePath, want)
	}
	if gray.ContextText != "Figure 1: traffic flow" {
		t.Errorf("ContextText = %q, want %q", gray.ContextText, "Figure 1: traffic flow")
	}
	if gray.Page != 1 {
		t.Errorf("Page = %d, want 1", gray.Page)
	}
	f, err := os.Open(gray.ImagePath)
	if err != nil {
		t.Fatalf("opening extracted png: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding extracted png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Errorf("png size = %dx%d, want 2x2", b.Dx(), b.Dy())
	}

	photo := doc.Images[1]
	if want := filepath.Join(imagesDir, "sample_page1_img2.jpg"); photo.ImagePath != want {
		t.Errorf("ImagePath = %q, want %q", photo.ImagePath, want)
	}
	if photo.ContextText != "" {
		t.Errorf("ContextText = %q, want empty", photo.ContextText)
	}
	got, err := os.ReadFile(photo.ImagePath)
	if err != nil {
		t.Fatalf("reading extracted jpeg: %v", err)
	}
	if !bytes.Equal(got, jpegBytes) {
		t.Errorf("extracted jpeg differs from embedded stream (%d vs %d bytes)", len(got), len(jpegBytes))
	}
}

func TestExtract_PageWithoutTextStillYieldsImages(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.pdf", imageOnlyPDF())

	doc, err := New(filepath.Join(dir, "images"), quietLogger()).Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.TrimSpace(doc.FullText) != "" {
		t.Errorf("FullText = %q, want empty", doc.FullText)
	}
	if len(doc.Images) != 1 {
		t.Fatalf("got %d images, want 1", len(doc.Images))
	}
	if doc.Images[0].ContextText != "" {
		t.Errorf("undrawn image got context %q", doc.Images[0].ContextText)
	}
	if filepath.Base(doc.Images[0].ImagePath) != "scan_page1_img1.png" {
		t.Errorf("ImagePath = %q", doc.Images[0].ImagePath)
	}
}

func TestExtract_CreatesImagesDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.pdf", imageOnlyPDF())
	imagesDir := filepath.Join(dir, "nested", "images")

	if _, err := New(imagesDir, quietLogger()).Extract(path); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fi, err := os.Stat(imagesDir); err != nil || !fi.IsDir() {
		t.Fatalf("images dir not created: %v", err)
	}
}

func TestExtract_NotAPDF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", []byte("this is not a pdf"))

	doc, err := New(filepath.Join(dir, "images"), quietLogger()).Extract(path)
	if err == nil {
		t.Fatal("expected error for non-PDF input")
	}
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("error %v does not wrap ErrExtraction", err)
	}
	if doc != nil {
		t.Errorf("doc = %+v, want nil", doc)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New(t.TempDir(), quietLogger()).Extract(filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("error = %v, want ErrExtraction", err)
	}
}
