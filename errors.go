package fontclass

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyBatch is returned when a batch has nothing left to normalize.
// It is the only batch-level failure; per-file errors never abort a batch.
var ErrEmptyBatch = errors.New("fontclass: empty measurement batch")

// ErrUnresolved reports that every resolution strategy was exhausted.
// Callers normally see it as the Unknown identifier instead.
var ErrUnresolved = errors.New("fontclass: unresolved font identifier")

// RenderError reports that the rasterizer could not process a font file.
// The file is excluded from its batch.
type RenderError struct {
	Path string
	Op   string // "read", "parse", "glyphs", "draw", "font info"...
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("fontclass: render %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// DegenerateMeasurementError reports a glyph run with zero extent.
type DegenerateMeasurementError struct {
	Path   string
	Reason string
}

func (e *DegenerateMeasurementError) Error() string {
	return fmt.Sprintf("fontclass: degenerate measurement for %s: %s", e.Path, e.Reason)
}

// NameAmbiguityError reports a directory whose filenames name more than one family.
type NameAmbiguityError struct {
	Dir      string
	Families []string
}

func (e *NameAmbiguityError) Error() string {
	fams := append([]string(nil), e.Families...)
	sort.Strings(fams)
	return fmt.Sprintf("fontclass: ambiguous family name in %s; possibilities: %s", e.Dir, strings.Join(fams, ", "))
}

// WeightTokenError reports a style/weight token missing from the weight table.
type WeightTokenError struct {
	Token string
}

func (e *WeightTokenError) Error() string {
	return fmt.Sprintf("fontclass: unknown weight token %q", e.Token)
}
