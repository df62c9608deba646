package fontclass

import (
	"context"
	"time"
)

// DefaultPointSize is the point size used to render the reference text.
const DefaultPointSize = 30

// SuggestedDuplicateThreshold is a DuplicateThreshold that separates renamed
// copies of one font program from sibling styles.
const SuggestedDuplicateThreshold = 32

const (
	defaultWorkers       = 3
	defaultRenderTimeout = 30 * time.Second
)

// FontJob is one font file submitted for classification.
type FontJob struct {
	Path    string   // font file on disk
	Subsets []string // declared subsets, e.g. "latin", "khmer" (optional)
}

// Cache abstracts key-value caching (Redis, sync.Map, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Config holds all dependencies and tunables injected by the consumer.
// Zero values mean "use defaults". Fields with yaml tags can be loaded from a
// file with [LoadConfig].
type Config struct {
	// Rasterizer renders reference text. When nil, every Classify/Extract call
	// opens an OpenTypeRasterizer for its own duration and closes it afterwards.
	Rasterizer Rasterizer `yaml:"-"`

	// Resolver derives canonical identifiers (nil = NewResolver()).
	Resolver *Resolver `yaml:"-"`

	Cache Cache `yaml:"-"` // optional: memoises raw measurements

	PointSize     float64       `yaml:"point_size"`     // default: DefaultPointSize (30)
	Workers       int           `yaml:"workers"`        // parallel files (default: 3)
	RenderTimeout time.Duration `yaml:"render_timeout"` // per-file limit (default: 30s)

	DarknessMode DarknessMode `yaml:"darkness_mode"` // default: DarknessNominalArea
	WidthMode    WidthMode    `yaml:"width_mode"`    // default: WidthXHeight

	// DegeneratePolicy applies to the weight and width attributes when every
	// font in a batch measures the same. Italic angle always clamps.
	DegeneratePolicy DegeneratePolicy `yaml:"degenerate_policy"` // default: PolicyMidpoint

	// PreviewDir receives one PNG specimen per processed font (empty = none).
	PreviewDir string `yaml:"preview_dir"`

	// DuplicateThreshold enables duplicate detection: two fonts with equal raw
	// measurements whose specimen hashes (256 bits) differ in fewer bits are
	// reported in BatchResult.Duplicates. Zero or negative disables; see
	// SuggestedDuplicateThreshold.
	DuplicateThreshold int `yaml:"duplicate_threshold"`

	// Optional callbacks for metrics/logging.
	OnSkip    func(SkippedFile)                         `yaml:"-"`
	OnPanic   func(tag string, r any)                   `yaml:"-"`
	OnResolve func(path string, report ResolutionReport) `yaml:"-"`
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.PointSize <= 0 {
		c.PointSize = DefaultPointSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = defaultRenderTimeout
	}
	if c.DarknessMode == "" {
		c.DarknessMode = DarknessNominalArea
	}
	if c.WidthMode == "" {
		c.WidthMode = WidthXHeight
	}
	if c.DegeneratePolicy == "" {
		c.DegeneratePolicy = PolicyMidpoint
	}
	if c.Resolver == nil {
		c.Resolver = NewResolver()
	}
}

// withRasterizer runs fn with the configured rasterizer, or with a scoped
// OpenTypeRasterizer that is closed when fn returns.
func (c *Config) withRasterizer(fn func(Rasterizer) error) error {
	if c.Rasterizer != nil {
		return fn(c.Rasterizer)
	}
	r := NewOpenTypeRasterizer()
	defer r.Close()
	return fn(r)
}
