package retrieval

import (
	"strings"

	"github.com/google/uuid"
)

// ImagePlaceholder is embedded for images that have no surrounding text.
const ImagePlaceholder = "Image without context"

// NewTextRecord builds the record for one text chunk.
func NewTextRecord(pdfName, text string, vec []float32) Record {
	return Record{
		ID:     pdfName + "_text_" + uuid.NewString(),
		Values: vec,
		Metadata: Metadata{
			Type:    TypeText,
			Text:    text,
			PDFName: pdfName,
		},
	}
}

// ImageSource describes an extracted image for NewImageRecord.
type ImageSource struct {
	Path    string
	Context string
	Caption string
}

// NewImageRecord builds the record for one extracted image.
func NewImageRecord(pdfName string, img ImageSource, vec []float32) Record {
	return Record{
		ID:     pdfName + "_image_" + uuid.NewString(),
		Values: vec,
		Metadata: Metadata{
			Type:      TypeImage,
			PDFName:   pdfName,
			ImagePath: img.Path,
			Context:   img.Context,
			Caption:   img.Caption,
		},
	}
}

// ImageEmbeddingText returns the text embedded for an image: its context,
// the caption appended when present, or the placeholder when both are empty.
func ImageEmbeddingText(context, caption string) string {
	context = strings.TrimSpace(context)
	switch {
	case context != "" && caption != "":
		return context + "\n\n" + caption
	case context != "":
		return context
	case caption != "":
		return caption
	default:
		return ImagePlaceholder
	}
}
