package fontclass

import (
	"context"
	"fmt"
	"image"
	"os"
	"slices"
	"strings"
)

// LatinText is the single-line specimen used for previews.
const LatinText = "AaBbCcDdEeFfGgHhIiJjKkLlMmNnOoPpQqRrSsTtUuVvXxYyZz"

// KhmerText is the specimen for fonts whose declared subsets include Khmer.
const KhmerText = "រលកបក់បោកនាល្ងាចដ៏កណ្តោចកណ្តែង"

// LatinBlock is the reference block measured for darkness and width.
const LatinBlock = "AaBbCcDdEeAaBbCcDdEe\n" +
	"FfGgHhIiJjFfGgHhIiJj\n" +
	"KkLlMmNnOoKkLlMmNnOo\n" +
	"PpQqRrSsTtPpQqRrSsTt\n" +
	"UuVvXxYyZzUuVvXxYyZz"

// KhmerBlock is the Khmer counterpart of LatinBlock.
var KhmerBlock = strings.Repeat(KhmerText+"\n", 4) + KhmerText

// DarknessMode selects the area the summed ink coverage is divided by.
type DarknessMode string

const (
	// DarknessNominalArea divides by text width × text height.
	DarknessNominalArea DarknessMode = "nominal_area"
	// DarknessCanvasArea divides by the sampled canvas pixel count.
	DarknessCanvasArea DarknessMode = "canvas_area"
)

// WidthMode selects how the width measurement is expressed.
type WidthMode string

const (
	// WidthPixels is the raw bounding width of the reference run.
	WidthPixels WidthMode = "pixels"
	// WidthXHeight is the bounding width divided by the x-height, which does
	// not depend on point size and compares across families.
	WidthXHeight WidthMode = "x_height"
)

// RawMeasurement holds one font's unnormalized visual metrics.
type RawMeasurement struct {
	Darkness float64
	Width    float64
}

// hasSubset reports whether subsets contains name (case-insensitive).
func hasSubset(subsets []string, name string) bool {
	return slices.ContainsFunc(subsets, func(s string) bool {
		return strings.EqualFold(strings.TrimSpace(s), name)
	})
}

// ReferenceBlock returns the multi-line block measured for job.
func ReferenceBlock(job FontJob) string {
	if hasSubset(job.Subsets, "khmer") {
		return KhmerBlock
	}
	return LatinBlock
}

// SpecimenText returns the single-line preview text for job.
func SpecimenText(job FontJob) string {
	if hasSubset(job.Subsets, "khmer") {
		return KhmerText
	}
	return LatinText
}

// Extract measures darkness and width of one font.
// Rasterizer failures are *RenderError, empty glyph runs *DegenerateMeasurementError.
func (cfg *Config) Extract(ctx context.Context, job FontJob) (RawMeasurement, error) {
	cfg.defaults()

	var m RawMeasurement
	err := cfg.withRasterizer(func(r Rasterizer) error {
		var err error
		m, err = cfg.measureCached(ctx, r, job)
		return err
	})
	return m, err
}

// measureCached consults cfg.Cache before measuring with r.
func (cfg *Config) measureCached(ctx context.Context, r Rasterizer, job FontJob) (RawMeasurement, error) {
	if cfg.Cache == nil {
		return cfg.measure(ctx, r, job)
	}

	cacheKey := cfg.measurementKey(job)
	var cached RawMeasurement
	if cacheKey != "" && cfg.Cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}
	m, err := cfg.measure(ctx, r, job)
	if err != nil {
		return RawMeasurement{}, err
	}
	if cacheKey != "" {
		cfg.Cache.Set(ctx, cacheKey, m)
	}
	return m, nil
}

func (cfg *Config) measure(ctx context.Context, r Rasterizer, job FontJob) (RawMeasurement, error) {
	block := ReferenceBlock(job)

	ext, err := r.Extent(ctx, job.Path, block, cfg.PointSize)
	if err != nil {
		return RawMeasurement{}, err
	}
	if ext.Width <= 0 || ext.Height <= 0 {
		return RawMeasurement{}, &DegenerateMeasurementError{
			Path:   job.Path,
			Reason: fmt.Sprintf("text extent %.1fx%.1f", ext.Width, ext.Height),
		}
	}

	// Sample only the interior of a doubled block: the canvas is a tenth of
	// the run wide and five lines tall, and the block is shifted up and left
	// so that no line start, line end or outer edge falls inside it.
	canvas := image.Pt(int(ext.Width/10), int(5*ext.Height))
	if canvas.X <= 0 || canvas.Y <= 0 {
		return RawMeasurement{}, &DegenerateMeasurementError{
			Path:   job.Path,
			Reason: fmt.Sprintf("sampling canvas %dx%d", canvas.X, canvas.Y),
		}
	}
	alpha, err := r.Render(ctx, job.Path, RenderRequest{
		Text:       block + "\n" + block,
		PointSize:  cfg.PointSize,
		Size:       canvas,
		Origin:     Origin{X: -ext.Width / 20, Y: -2.5 * ext.Height},
		LineHeight: ext.Height,
	})
	if err != nil {
		return RawMeasurement{}, err
	}

	area := ext.Width * ext.Height
	if cfg.DarknessMode == DarknessCanvasArea {
		area = float64(canvas.X * canvas.Y)
	}
	m := RawMeasurement{
		Darkness: Coverage(alpha) / area,
		Width:    ext.Width,
	}

	if cfg.WidthMode == WidthXHeight {
		xHeight := ext.XHeight
		if xHeight <= 0 {
			// Fall back to the x-height declared in the OS/2 table.
			if info, err := ReadFontInfo(job.Path); err == nil {
				xHeight = info.XHeight * cfg.PointSize
			}
		}
		if xHeight <= 0 {
			return RawMeasurement{}, &DegenerateMeasurementError{Path: job.Path, Reason: "zero x-height"}
		}
		m.Width = ext.Width / xHeight
	}
	return m, nil
}

// Coverage returns the summed ink coverage of img, each pixel contributing
// its alpha in [0,1].
func Coverage(img *image.Alpha) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride : (y-b.Min.Y)*img.Stride+b.Dx()]
		for _, a := range row {
			sum += uint64(a)
		}
	}
	return float64(sum) / 255
}

// measurementKey identifies a measurement by file identity and every setting
// that influences it. Returns "" when the file cannot be stat'ed.
func (cfg *Config) measurementKey(job FontJob) string {
	st, err := os.Stat(job.Path)
	if err != nil {
		return ""
	}
	v := fmt.Sprintf("%s|%d|%d|%g|%s|%s|%t", job.Path, st.Size(), st.ModTime().UnixNano(),
		cfg.PointSize, cfg.DarknessMode, cfg.WidthMode, hasSubset(job.Subsets, "khmer"))
	return cfg.Cache.Key("fontclass_raw", v)
}
