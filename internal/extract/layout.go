package extract

import (
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// maxFormDepth bounds recursion into nested form XObjects.
const maxFormDepth = 4

// matrix is a PDF affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns the transform that applies m first and then n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// rect is an axis-aligned box in PDF user space (origin bottom-left).
type rect struct {
	x0, y0, x1, y1 float64
}

// unitSquare maps the image space unit square through m.
func unitSquare(m matrix) rect {
	r := rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, p := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := m.apply(p[0], p[1])
		r.x0 = math.Min(r.x0, x)
		r.y0 = math.Min(r.y0, y)
		r.x1 = math.Max(r.x1, x)
		r.y1 = math.Max(r.y1, y)
	}
	return r
}

// placement is an image XObject and, when it is drawn, where.
type placement struct {
	name   string
	xobj   pdf.Value
	rect   rect
	placed bool
}

// locateImages lists the image XObjects of a page in drawing order. Images
// that are only declared in the page resources follow, unplaced, in name
// order. On a content stream the pdf package cannot interpret, the images
// found so far are returned together with the error.
func locateImages(page pdf.Page) (out []placement, err error) {
	seen := make(map[string]bool)
	resources := page.Resources()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("interpreting content stream: %v", p)
		}
		out = append(out, declaredImages(resources, seen)...)
	}()

	contents := page.V.Key("Contents")
	if contents.IsNull() {
		return nil, nil
	}
	walkContent(contents, resources, identity, "", 0, seen, &out)
	return out, nil
}

func walkContent(strm, resources pdf.Value, base matrix, scope string, depth int, seen map[string]bool, out *[]placement) {
	ctm := base
	var stack []matrix

	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if len(stack) > 0 {
				ctm = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
		case "cm":
			if len(args) != 6 {
				return
			}
			var m matrix
			for i := range m {
				m[i] = args[i].Float64()
			}
			ctm = m.mul(ctm)
		case "Do":
			if len(args) != 1 {
				return
			}
			name := args[0].Name()
			xobj := resources.Key("XObject").Key(name)
			switch xobj.Key("Subtype").Name() {
			case "Image":
				key := scope + name
				if seen[key] {
					return
				}
				seen[key] = true
				*out = append(*out, placement{name: name, xobj: xobj, rect: unitSquare(ctm), placed: true})
			case "Form":
				if depth >= maxFormDepth {
					return
				}
				formRes := xobj.Key("Resources")
				if formRes.IsNull() {
					formRes = resources
				}
				walkContent(xobj, formRes, formMatrix(xobj).mul(ctm), scope+name+"/", depth+1, seen, out)
			}
		}
	})
}

func formMatrix(xobj pdf.Value) matrix {
	m := xobj.Key("Matrix")
	if m.Len() != 6 {
		return identity
	}
	var out matrix
	for i := range out {
		out[i] = m.Index(i).Float64()
	}
	return out
}

// declaredImages returns page-level image XObjects that were never drawn.
func declaredImages(resources pdf.Value, seen map[string]bool) []placement {
	xobjects := resources.Key("XObject")
	var out []placement
	for _, name := range xobjects.Keys() {
		if seen[name] {
			continue
		}
		xobj := xobjects.Key(name)
		if xobj.Key("Subtype").Name() != "Image" {
			continue
		}
		seen[name] = true
		out = append(out, placement{name: name, xobj: xobj})
	}
	return out
}
