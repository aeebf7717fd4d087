package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction marks failures to open or parse a PDF document.
var ErrExtraction = errors.New("extraction failed")

// Context search margins, in PDF user-space units.
const (
	contextMargin      = 100
	contextRetryMargin = 150
)

// Document is the text and image content extracted from one PDF.
type Document struct {
	Name     string
	FullText string
	Images   []ImageContext
}

// ImageContext pairs an extracted image file with the text printed around it.
type ImageContext struct {
	ImagePath   string
	ContextText string
	Page        int
}

// Extractor pulls text and images out of PDF files. Images are written to
// ImagesDir.
type Extractor struct {
	ImagesDir string
	logger    *slog.Logger
}

// New creates an Extractor that writes images into imagesDir.
func New(imagesDir string, logger *slog.Logger) *Extractor {
	if imagesDir == "" {
		imagesDir = "images"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ImagesDir: imagesDir, logger: logger}
}

// DocumentName returns the file name of path without its .pdf extension.
func DocumentName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Extract reads the PDF at path. Pages without text and images that cannot
// be decoded are logged and skipped. A document that cannot be opened at all
// yields a nil Document and an error wrapping ErrExtraction.
func (e *Extractor) Extract(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrExtraction, path, err)
	}

	r, numPages, err := openReader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrExtraction, path, err)
	}

	if err := os.MkdirAll(e.ImagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating images directory: %w", ErrExtraction, err)
	}

	doc := &Document{Name: DocumentName(path)}
	raw := newRawStreams(data)
	fonts := make(map[string]*pdf.Font)

	var text strings.Builder
	for n := 1; n <= numPages; n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			e.logger.Warn("page not found", "pdf", doc.Name, "page", n)
			continue
		}

		pageText, err := e.pageText(page, fonts)
		if err != nil {
			e.logger.Warn("extracting page text", "pdf", doc.Name, "page", n, "error", err)
		} else if strings.TrimSpace(pageText) == "" {
			e.logger.Warn("no text extracted from page", "pdf", doc.Name, "page", n)
		} else {
			text.WriteString(pageText)
			text.WriteString("\n")
		}

		doc.Images = append(doc.Images, e.pageImages(doc.Name, n, page, raw)...)
	}
	doc.FullText = text.String()

	e.logger.Info("extracted document", "pdf", doc.Name, "pages", numPages, "text_chars", len(doc.FullText), "images", len(doc.Images))
	return doc, nil
}

// openReader parses the cross-reference data of a PDF held in memory.
// The pdf package panics on some malformed inputs, so panics are returned as errors.
func openReader(data []byte) (r *pdf.Reader, numPages int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed PDF: %v", p)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

func (e *Extractor) pageText(page pdf.Page, fonts map[string]*pdf.Font) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrExtraction, p)
		}
	}()
	for _, name := range page.Fonts() {
		if _, ok := fonts[name]; !ok {
			f := page.Font(name)
			fonts[name] = &f
		}
	}
	return page.GetPlainText(fonts)
}

// pageImages writes every image of a page to disk and collects its context.
func (e *Extractor) pageImages(docName string, pageNum int, page pdf.Page, raw *rawStreams) []ImageContext {
	placements, err := locateImages(page)
	if err != nil {
		e.logger.Warn("locating images", "pdf", docName, "page", pageNum, "error", err)
	}
	if len(placements) == 0 {
		return nil
	}

	glyphs := pageGlyphs(page)

	var out []ImageContext
	for i, pl := range placements {
		index := i + 1
		img, err := decodeImage(pl.xobj, raw)
		if err != nil {
			e.logger.Warn("extracting image", "pdf", docName, "page", pageNum, "image", index, "error", err)
			continue
		}

		name := fmt.Sprintf("%s_page%d_img%d.%s", docName, pageNum, index, img.ext)
		path := filepath.Join(e.ImagesDir, name)
		if err := os.WriteFile(path, img.data, 0o644); err != nil {
			e.logger.Warn("writing image", "pdf", docName, "page", pageNum, "image", index, "error", err)
			continue
		}

		var context string
		if pl.placed {
			context = nearbyText(glyphs, pl.rect, contextMargin)
			if context == "" {
				context = nearbyText(glyphs, pl.rect, contextRetryMargin)
			}
		}

		out = append(out, ImageContext{ImagePath: path, ContextText: context, Page: pageNum})
	}
	return out
}

// pageGlyphs returns the positioned characters of a page, or nil when the
// content stream cannot be interpreted.
func pageGlyphs(page pdf.Page) (glyphs []pdf.Text) {
	defer func() {
		if recover() != nil {
			glyphs = nil
		}
	}()
	return page.Content().Text
}
