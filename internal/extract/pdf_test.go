package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// pdfObject is the body of one indirect object, without the obj/endobj wrapper.
type pdfObject []byte

// buildPDF lays out objects numbered from 1 and appends a valid xref table
// and trailer. Object 1 must be the catalog.
func buildPDF(objects []pdfObject) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(obj)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func dictObj(body string) pdfObject {
	return pdfObject(body)
}

func streamObj(dict string, data []byte) pdfObject {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s /Length %d >>\nstream\n", dict, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 20), uint8(y * 20), 0x80, 0xff})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

// figurePDF is a one-page document with a caption under a gray image and a
// JPEG placed far away from any text.
func figurePDF(t *testing.T) (data, jpegBytes []byte) {
	t.Helper()
	jpegBytes = testJPEG(t, 8, 6)

	content := []byte(`BT /F1 12 Tf 72 300 Td (Figure 1: traffic flow) Tj ET
BT /F1 12 Tf 72 700 Td (Document heading) Tj ET
q 100 0 0 50 72 320 cm /Im1 Do Q
q 50 0 0 50 300 600 cm /Im2 Do Q
`)

	data = buildPDF([]pdfObject{
		dictObj(`<< /Type /Catalog /Pages 2 0 R >>`),
		dictObj(`<< /Type /Pages /Kids [3 0 R] /Count 1 >>`),
		dictObj(`<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> /XObject << /Im1 6 0 R /Im2 7 0 R >> >> /Contents 4 0 R >>`),
		streamObj(``, content),
		dictObj(`<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>`),
		streamObj(`/Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceGray /BitsPerComponent 8`, []byte{0x00, 0x40, 0x80, 0xff}),
		streamObj(`/Type /XObject /Subtype /Image /Width 8 /Height 6 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode`, jpegBytes),
	})
	return data, jpegBytes
}

// imageOnlyPDF has no text operators at all and one undrawn image resource.
func imageOnlyPDF() []byte {
	return buildPDF([]pdfObject{
		dictObj(`<< /Type /Catalog /Pages 2 0 R >>`),
		dictObj(`<< /Type /Pages /Kids [3 0 R] /Count 1 >>`),
		dictObj(`<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 5 0 R >> >> /Contents 4 0 R >>`),
		streamObj(``, []byte("0 0 m 10 10 l S\n")),
		streamObj(`/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8`, []byte{0xff, 0x00, 0x00}),
	})
}
