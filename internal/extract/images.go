package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// extractedImage is an encoded image ready to be written to disk.
type extractedImage struct {
	data []byte
	ext  string
}

// decodeImage turns an image XObject into file bytes. JPEG and JPEG 2000
// streams are copied as-is; uncompressed and Flate streams with gray, RGB,
// CMYK or indexed color are re-encoded as PNG.
func decodeImage(xobj pdf.Value, raw *rawStreams) (extractedImage, error) {
	if xobj.Key("ImageMask").Bool() {
		return extractedImage{}, fmt.Errorf("stencil masks are not extracted")
	}

	filters := filterNames(xobj.Key("Filter"))
	last := ""
	if len(filters) > 0 {
		last = filters[len(filters)-1]
	}

	switch last {
	case "DCTDecode", "JPXDecode":
		if len(filters) > 1 {
			return extractedImage{}, fmt.Errorf("unsupported filter chain %s", strings.Join(filters, ","))
		}
		return passthrough(xobj, last, raw)
	case "", "FlateDecode", "ASCII85Decode":
		return rasterize(xobj)
	default:
		return extractedImage{}, fmt.Errorf("unsupported image filter %s", last)
	}
}

func filterNames(v pdf.Value) []string {
	switch v.Kind() {
	case pdf.Name:
		return []string{v.Name()}
	case pdf.Array:
		names := make([]string, v.Len())
		for i := range names {
			names[i] = v.Index(i).Name()
		}
		return names
	}
	return nil
}

func passthrough(xobj pdf.Value, filter string, raw *rawStreams) (extractedImage, error) {
	width := xobj.Key("Width").Int64()
	height := xobj.Key("Height").Int64()
	data, ok := raw.lookup(filter, width, height, xobj.Key("Length").Int64())
	if !ok || len(data) == 0 {
		return extractedImage{}, fmt.Errorf("%s stream %dx%d not found in file", filter, width, height)
	}

	mt := mimetype.Detect(data)
	switch {
	case filter == "DCTDecode" && mt.Is("image/jpeg"):
	case filter == "JPXDecode" && (mt.Is("image/jp2") || mt.Is("image/jpx")):
	default:
		return extractedImage{}, fmt.Errorf("%s stream holds %s", filter, mt.String())
	}
	return extractedImage{data: data, ext: strings.TrimPrefix(mt.Extension(), ".")}, nil
}

// rasterize decodes image samples through the pdf package and encodes a PNG.
func rasterize(xobj pdf.Value) (img extractedImage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("decoding image stream: %v", p)
		}
	}()

	width := int(xobj.Key("Width").Int64())
	height := int(xobj.Key("Height").Int64())
	bpc := int(xobj.Key("BitsPerComponent").Int64())
	if width <= 0 || height <= 0 {
		return extractedImage{}, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	cs, err := parseColorSpace(xobj.Key("ColorSpace"))
	if err != nil {
		return extractedImage{}, err
	}
	if bpc == 0 {
		bpc = 8
	}
	if bpc != 8 && !(bpc < 8 && (cs.components == 1)) {
		return extractedImage{}, fmt.Errorf("unsupported %d bits per component for %d components", bpc, cs.components)
	}

	rd := xobj.Reader()
	defer rd.Close()
	stride := (width*cs.components*bpc + 7) / 8
	samples := make([]byte, stride*height)
	if _, err := io.ReadFull(rd, samples); err != nil {
		return extractedImage{}, fmt.Errorf("reading image samples: %w", err)
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := samples[y*stride : (y+1)*stride]
		for x := 0; x < width; x++ {
			out.SetNRGBA(x, y, cs.pixel(row, x, bpc))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return extractedImage{}, fmt.Errorf("encoding png: %w", err)
	}
	return extractedImage{data: buf.Bytes(), ext: "png"}, nil
}

// colorSpace converts raw samples to pixels.
type colorSpace struct {
	name       string
	components int
	palette    []color.NRGBA
}

func parseColorSpace(v pdf.Value) (colorSpace, error) {
	switch v.Kind() {
	case pdf.Name:
		switch v.Name() {
		case "DeviceGray", "CalGray":
			return colorSpace{name: "gray", components: 1}, nil
		case "DeviceRGB", "CalRGB":
			return colorSpace{name: "rgb", components: 3}, nil
		case "DeviceCMYK":
			return colorSpace{name: "cmyk", components: 4}, nil
		}
		return colorSpace{}, fmt.Errorf("unsupported color space %s", v.Name())
	case pdf.Array:
		switch v.Index(0).Name() {
		case "ICCBased":
			switch v.Index(1).Key("N").Int64() {
			case 1:
				return colorSpace{name: "gray", components: 1}, nil
			case 3:
				return colorSpace{name: "rgb", components: 3}, nil
			case 4:
				return colorSpace{name: "cmyk", components: 4}, nil
			}
		case "CalGray":
			return colorSpace{name: "gray", components: 1}, nil
		case "CalRGB":
			return colorSpace{name: "rgb", components: 3}, nil
		case "Indexed", "I":
			return indexedColorSpace(v)
		}
		return colorSpace{}, fmt.Errorf("unsupported color space %s", v.Index(0).Name())
	}
	return colorSpace{}, fmt.Errorf("missing color space")
}

func indexedColorSpace(v pdf.Value) (colorSpace, error) {
	base, err := parseColorSpace(v.Index(1))
	if err != nil {
		return colorSpace{}, fmt.Errorf("indexed base: %w", err)
	}
	hival := int(v.Index(2).Int64())

	var table []byte
	lookup := v.Index(3)
	switch lookup.Kind() {
	case pdf.String:
		table = []byte(lookup.RawString())
	case pdf.Stream:
		rd := lookup.Reader()
		table, err = io.ReadAll(rd)
		rd.Close()
		if err != nil {
			return colorSpace{}, fmt.Errorf("reading palette: %w", err)
		}
	default:
		return colorSpace{}, fmt.Errorf("missing palette")
	}

	palette := make([]color.NRGBA, hival+1)
	for i := range palette {
		off := i * base.components
		if off+base.components > len(table) {
			break
		}
		palette[i] = base.pixel(table[off:off+base.components], 0, 8)
	}
	return colorSpace{name: "indexed", components: 1, palette: palette}, nil
}

// pixel reads the x-th pixel of a sample row.
func (cs colorSpace) pixel(row []byte, x, bpc int) color.NRGBA {
	switch cs.name {
	case "rgb":
		o := x * 3
		return color.NRGBA{row[o], row[o+1], row[o+2], 0xff}
	case "cmyk":
		o := x * 4
		c, m, y, k := row[o], row[o+1], row[o+2], row[o+3]
		r, g, b := color.CMYKToRGB(c, m, y, k)
		return color.NRGBA{r, g, b, 0xff}
	case "indexed":
		i := int(sample(row, x, bpc))
		if i < len(cs.palette) {
			return cs.palette[i]
		}
		return color.NRGBA{A: 0xff}
	default:
		s := sample(row, x, bpc)
		top := byte(1<<bpc - 1)
		g := byte(int(s) * 255 / int(top))
		return color.NRGBA{g, g, g, 0xff}
	}
}

// sample extracts the x-th bpc-bit value of a packed row.
func sample(row []byte, x, bpc int) byte {
	if bpc == 8 {
		return row[x]
	}
	bit := x * bpc
	b := row[bit/8]
	shift := 8 - bpc - bit%8
	return (b >> shift) & byte(1<<bpc-1)
}
