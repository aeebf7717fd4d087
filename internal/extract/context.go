package extract

import (
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// nearbyText collects the glyphs inside r stretched vertically by margin and
// joins them into lines. The stretched box never extends below the page
// origin. Glyphs keep content-stream order within a line.
func nearbyText(glyphs []pdf.Text, r rect, margin float64) string {
	area := rect{
		x0: r.x0,
		y0: math.Max(0, r.y0-margin),
		x1: r.x1,
		y1: r.y1 + margin,
	}

	var (
		lines []string
		line  strings.Builder
		prev  *pdf.Text
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	for i := range glyphs {
		g := &glyphs[i]
		if !glyphInside(g, area) {
			continue
		}
		if prev != nil {
			switch {
			case !sameLine(prev, g):
				flush()
			case wordGap(prev, g):
				line.WriteByte(' ')
			}
		}
		line.WriteString(g.S)
		prev = g
	}
	flush()

	return strings.Join(lines, "\n")
}

func glyphInside(g *pdf.Text, area rect) bool {
	size := g.FontSize
	if size <= 0 {
		size = 1
	}
	return g.X+g.W >= area.x0 && g.X <= area.x1 &&
		g.Y+size >= area.y0 && g.Y <= area.y1
}

func sameLine(a, b *pdf.Text) bool {
	tol := math.Max(a.FontSize, b.FontSize) * 0.5
	if tol <= 0 {
		tol = 1
	}
	return math.Abs(a.Y-b.Y) <= tol
}

// wordGap reports whether the horizontal distance between two glyphs on a
// line reads as a space that the content stream did not spell out.
func wordGap(prev, cur *pdf.Text) bool {
	if prev.S == " " || cur.S == " " {
		return false
	}
	width := prev.W
	if width <= 0 {
		width = prev.FontSize * 0.5
	}
	gap := cur.X - (prev.X + width)
	return gap > prev.FontSize*0.5
}
