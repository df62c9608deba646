package fontclass

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/singleflight"
)

// Extent is the pixel geometry of a text rendered as one continuous glyph run.
type Extent struct {
	Width   float64 // advance width of the run
	Height  float64 // line height (ascent + descent)
	XHeight float64 // height of lowercase "x", 0 if unknown
}

// Origin is the top-left corner where a text block starts, in canvas pixels.
// Negative values move the block outside the canvas.
type Origin struct {
	X, Y float64
}

// RenderRequest describes one draw call onto a fresh alpha canvas.
type RenderRequest struct {
	Text       string      // lines separated by '\n'
	PointSize  float64     // em size in pixels (72 DPI)
	Size       image.Point // canvas size
	Origin     Origin      // top-left of the first line
	LineHeight float64     // 0 = font line height
}

// Rasterizer is the text rasterization capability. Implementations must be
// safe for concurrent use.
type Rasterizer interface {
	// Extent measures text as a single glyph run; newlines are ignored.
	Extent(ctx context.Context, fontFile, text string, pointSize float64) (Extent, error)
	// Render draws req onto an alpha canvas and returns the ink coverage.
	// Glyphs are placed from the cmap one rune at a time; complex scripts
	// such as Khmer are not shaped.
	Render(ctx context.Context, fontFile string, req RenderRequest) (*image.Alpha, error)
	// Close releases the capability. Further calls fail.
	Close() error
}

// Raster is a rendered text specimen.
type Raster struct {
	Alpha  *image.Alpha
	Width  int // bounding width in pixels
	Height int // bounding height in pixels
}

// RenderSpecimen renders text as a single line onto a canvas of exactly its
// bounding size.
func RenderSpecimen(ctx context.Context, r Rasterizer, fontFile, text string, pointSize float64) (*Raster, error) {
	ext, err := r.Extent(ctx, fontFile, text, pointSize)
	if err != nil {
		return nil, err
	}
	size := image.Pt(int(math.Ceil(ext.Width)), int(math.Ceil(ext.Height)))
	if size.X <= 0 || size.Y <= 0 {
		return nil, &DegenerateMeasurementError{Path: fontFile, Reason: fmt.Sprintf("specimen extent %dx%d", size.X, size.Y)}
	}
	alpha, err := r.Render(ctx, fontFile, RenderRequest{
		Text:      strings.ReplaceAll(text, "\n", ""),
		PointSize: pointSize,
		Size:      size,
	})
	if err != nil {
		return nil, err
	}
	return &Raster{Alpha: alpha, Width: size.X, Height: size.Y}, nil
}

var errRasterizerClosed = errors.New("rasterizer closed")

// OpenTypeRasterizer renders TrueType/OpenType fonts with golang.org/x/image.
// Parsed fonts are kept until Close. It is safe for concurrent use.
type OpenTypeRasterizer struct {
	Hinting font.Hinting // default: font.HintingNone

	mu     sync.Mutex
	fonts  map[string]*sfnt.Font
	closed bool
	group  singleflight.Group
}

// NewOpenTypeRasterizer opens a rasterizer. Callers must Close it.
func NewOpenTypeRasterizer() *OpenTypeRasterizer {
	return &OpenTypeRasterizer{fonts: make(map[string]*sfnt.Font)}
}

// Close drops every cached font.
func (r *OpenTypeRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.fonts = nil
	return nil
}

// load parses fontFile once; concurrent callers share the parse.
func (r *OpenTypeRasterizer) load(fontFile string) (*sfnt.Font, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, &RenderError{Path: fontFile, Op: "open", Err: errRasterizerClosed}
	}
	if f, ok := r.fonts[fontFile]; ok {
		r.mu.Unlock()
		return f, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(fontFile, func() (any, error) {
		data, err := os.ReadFile(fontFile)
		if err != nil {
			return nil, &RenderError{Path: fontFile, Op: "read", Err: err}
		}
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, &RenderError{Path: fontFile, Op: "parse", Err: err}
		}
		r.mu.Lock()
		if !r.closed {
			r.fonts[fontFile] = f
		}
		r.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sfnt.Font), nil
}

// face builds a fresh face; faces are not safe for concurrent use.
func (r *OpenTypeRasterizer) face(fontFile string, pointSize float64) (font.Face, *sfnt.Font, error) {
	f, err := r.load(fontFile)
	if err != nil {
		return nil, nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    pointSize,
		DPI:     72,
		Hinting: r.Hinting,
	})
	if err != nil {
		return nil, nil, &RenderError{Path: fontFile, Op: "face", Err: err}
	}
	return face, f, nil
}

// checkGlyphs fails when the font has no glyph for a printable rune of text.
func checkGlyphs(f *sfnt.Font, fontFile, text string) error {
	var buf sfnt.Buffer
	var missing []rune
	for _, c := range text {
		if unicode.IsSpace(c) || !unicode.IsGraphic(c) {
			continue
		}
		idx, err := f.GlyphIndex(&buf, c)
		if err != nil {
			return &RenderError{Path: fontFile, Op: "glyphs", Err: err}
		}
		if idx == 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &RenderError{Path: fontFile, Op: "glyphs", Err: fmt.Errorf("no glyph for %q", string(missing))}
	}
	return nil
}

// glyphHeight is the inked height of r's glyph, 0 when the font maps r to
// no glyph (.notdef would otherwise be measured).
func glyphHeight(f *sfnt.Font, face font.Face, r rune) float64 {
	var buf sfnt.Buffer
	if idx, err := f.GlyphIndex(&buf, r); err != nil || idx == 0 {
		return 0
	}
	b, _, ok := face.GlyphBounds(r)
	if !ok {
		return 0
	}
	return fixedToFloat(b.Max.Y - b.Min.Y)
}

func (r *OpenTypeRasterizer) Extent(ctx context.Context, fontFile, text string, pointSize float64) (Extent, error) {
	return guard(ctx, fontFile, "extent", func() (Extent, error) {
		face, f, err := r.face(fontFile, pointSize)
		if err != nil {
			return Extent{}, err
		}
		defer face.Close()

		run := strings.ReplaceAll(text, "\n", "")
		if err := checkGlyphs(f, fontFile, run); err != nil {
			return Extent{}, err
		}

		m := face.Metrics()
		ext := Extent{
			Width:   fixedToFloat(font.MeasureString(face, run)),
			Height:  float64(m.Ascent.Ceil() + m.Descent.Ceil()),
			XHeight: fixedToFloat(m.XHeight),
		}
		if ext.XHeight <= 0 {
			// No OS/2 sxHeight: measure the glyph instead.
			ext.XHeight = glyphHeight(f, face, 'x')
		}
		return ext, nil
	})
}

func (r *OpenTypeRasterizer) Render(ctx context.Context, fontFile string, req RenderRequest) (*image.Alpha, error) {
	return guard(ctx, fontFile, "draw", func() (*image.Alpha, error) {
		face, _, err := r.face(fontFile, req.PointSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()

		m := face.Metrics()
		ascent := float64(m.Ascent.Ceil())
		lineHeight := req.LineHeight
		if lineHeight <= 0 {
			lineHeight = ascent + float64(m.Descent.Ceil())
		}

		canvas := image.NewAlpha(image.Rect(0, 0, req.Size.X, req.Size.Y))
		d := &font.Drawer{Dst: canvas, Src: image.Opaque, Face: face}
		for i, line := range strings.Split(req.Text, "\n") {
			d.Dot = fixed.Point26_6{
				X: floatToFixed(req.Origin.X),
				Y: floatToFixed(req.Origin.Y + ascent + float64(i)*lineHeight),
			}
			d.DrawString(line)
		}
		return canvas, nil
	})
}

// guard runs fn in its own goroutine so that a pathological font cannot stall
// the caller past ctx, and converts rasterizer panics into a *RenderError.
// A timed-out fn keeps running in the background until it returns.
func guard[T any](ctx context.Context, fontFile, op string, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, &RenderError{Path: fontFile, Op: op, Err: err}
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result{err: &RenderError{Path: fontFile, Op: op, Err: fmt.Errorf("panic: %v", rec)}}
			}
		}()
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			var re *RenderError
			if !errors.As(res.err, &re) {
				res.err = &RenderError{Path: fontFile, Op: op, Err: res.err}
			}
		}
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, &RenderError{Path: fontFile, Op: op, Err: ctx.Err()}
	}
}

func fixedToFloat(x fixed.Int26_6) float64 {
	return float64(x) / 64
}

func floatToFixed(x float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(x * 64))
}
