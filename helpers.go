package fontclass

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// EncodeDataURL creates a data: URI from bytes and MIME type.
func EncodeDataURL(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Image returns the specimen as black ink on a white background.
func (r *Raster) Image() *image.Gray {
	b := r.Alpha.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Pix[g.PixOffset(x, y)] = 255 - r.Alpha.Pix[r.Alpha.PixOffset(x, y)]
		}
	}
	return g
}

// DataURL returns the specimen as a PNG data: URI, or "" if encoding fails.
func (r *Raster) DataURL() string {
	data, err := EncodePNG(r.Image())
	if err != nil {
		return ""
	}
	return EncodeDataURL(data, "image/png")
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PreviewFileName returns the specimen file name for a font: the identifier
// with unsafe characters replaced, or the font's base name when unresolved.
func PreviewFileName(gfn, fontFile string) string {
	name := gfn
	if name == "" || name == Unknown {
		name = strings.TrimSuffix(filepath.Base(fontFile), filepath.Ext(fontFile))
	}
	return unsafeFileChars.ReplaceAllString(name, "_") + ".png"
}

// writePreview stores the specimen under cfg.PreviewDir. Failures are logged
// and reported as "": previews are a review aid, not a measurement.
func (cfg *Config) writePreview(gfn, fontFile string, r *Raster) string {
	data, err := EncodePNG(r.Image())
	if err != nil {
		slog.Warn("fontclass: failed to encode preview", "file", fontFile, "error", err.Error())
		return ""
	}
	if err := os.MkdirAll(cfg.PreviewDir, 0o755); err != nil {
		slog.Warn("fontclass: failed to create preview dir", "dir", cfg.PreviewDir, "error", err.Error())
		return ""
	}
	p := filepath.Join(cfg.PreviewDir, PreviewFileName(gfn, fontFile))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		slog.Warn("fontclass: failed to write preview", "file", fontFile, "error", err.Error())
		return ""
	}
	return p
}
