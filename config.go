package fontclass

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the tunable fields of a Config from a YAML file:
//
//	point_size: 30
//	workers: 4
//	render_timeout: 20s
//	darkness_mode: nominal_area   # or canvas_area
//	width_mode: x_height          # or pixels
//	degenerate_policy: midpoint   # or clamp
//	preview_dir: previews
//	duplicate_threshold: 32       # 0 = off
//
// Dependencies (Rasterizer, Resolver, Cache, callbacks) are set by the caller.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("fontclass: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown mode and policy names. Empty values are allowed
// and replaced by defaults.
func (c *Config) Validate() error {
	switch c.DarknessMode {
	case "", DarknessNominalArea, DarknessCanvasArea:
	default:
		return fmt.Errorf("fontclass: unknown darkness_mode %q", c.DarknessMode)
	}
	switch c.WidthMode {
	case "", WidthPixels, WidthXHeight:
	default:
		return fmt.Errorf("fontclass: unknown width_mode %q", c.WidthMode)
	}
	switch c.DegeneratePolicy {
	case "", PolicyMidpoint, PolicyClampAbsolute:
	default:
		return fmt.Errorf("fontclass: unknown degenerate_policy %q", c.DegeneratePolicy)
	}
	if c.Workers < 0 {
		return fmt.Errorf("fontclass: negative workers %d", c.Workers)
	}
	return nil
}
