package fontclass

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// fakeFont configures what fakeRasterizer reports for one file (by base name).
type fakeFont struct {
	extent Extent
	fill   uint8 // alpha of every rendered pixel
	err    error
	panic  bool
}

// fakeRasterizer renders every canvas as a uniform fill so that darkness is
// exactly fill/255 × canvas pixels / area.
type fakeRasterizer struct {
	fonts map[string]fakeFont

	extents atomic.Int32
	renders atomic.Int32

	mu      sync.Mutex
	lastReq RenderRequest
}

func (f *fakeRasterizer) lookup(fontFile string) fakeFont {
	if ff, ok := f.fonts[filepath.Base(fontFile)]; ok {
		return ff
	}
	return fakeFont{extent: Extent{Width: 100, Height: 10, XHeight: 5}, fill: 128}
}

func (f *fakeRasterizer) Extent(_ context.Context, fontFile, _ string, _ float64) (Extent, error) {
	f.extents.Add(1)
	ff := f.lookup(fontFile)
	if ff.err != nil {
		return Extent{}, ff.err
	}
	return ff.extent, nil
}

func (f *fakeRasterizer) Render(_ context.Context, fontFile string, req RenderRequest) (*image.Alpha, error) {
	f.renders.Add(1)
	ff := f.lookup(fontFile)
	if ff.panic {
		panic("rasterizer exploded")
	}
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()

	img := image.NewAlpha(image.Rect(0, 0, req.Size.X, req.Size.Y))
	for i := range img.Pix {
		img.Pix[i] = ff.fill
	}
	return img, nil
}

func (f *fakeRasterizer) Close() error { return nil }

// memCache is an in-memory Cache for RawMeasurement values.
type memCache struct {
	mu   sync.Mutex
	m    map[string]RawMeasurement
	sets int
}

func newMemCache() *memCache { return &memCache{m: make(map[string]RawMeasurement)} }

func (c *memCache) Key(prefix, value string) string { return prefix + ":" + value }

func (c *memCache) Get(_ context.Context, key string, dest any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	if !ok {
		return false
	}
	*dest.(*RawMeasurement) = v
	return true
}

func (c *memCache) Set(_ context.Context, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value.(RawMeasurement)
	c.sets++
}

// writeFont writes data to dir/name and returns the path.
func writeFont(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// regularFont writes the Go Regular font under name.
func regularFont(t *testing.T, dir, name string) string {
	t.Helper()
	return writeFont(t, dir, name, goregular.TTF)
}

// boldFont writes the Go Bold font under name.
func boldFont(t *testing.T, dir, name string) string {
	t.Helper()
	return writeFont(t, dir, name, gobold.TTF)
}

// headerOnlyFont writes a file with a valid sfnt version tag and no tables.
// It passes validation but no parser accepts it.
func headerOnlyFont(t *testing.T, dir, name string) string {
	t.Helper()
	data := make([]byte, 32)
	copy(data, []byte{0x00, 0x01, 0x00, 0x00})
	return writeFont(t, dir, name, data)
}

func jobs(paths ...string) []FontJob {
	out := make([]FontJob, len(paths))
	for i, p := range paths {
		out[i] = FontJob{Path: p}
	}
	return out
}

var errFake = errors.New("fake failure")
