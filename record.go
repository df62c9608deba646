package fontclass

import (
	"fmt"
	"sort"
	"strings"
)

// Score is an optional ordinal score in [1,10]. The zero value is unset.
type Score struct {
	v   int
	set bool
}

// ScoreUnset is the unset score.
var ScoreUnset = Score{}

// NewScore returns a set score. It panics outside [1,10]; use ParseScore for input.
func NewScore(n int) Score {
	if n < DefaultTargetMin || n > DefaultTargetMax {
		panic(fmt.Sprintf("fontclass: score %d out of range", n))
	}
	return Score{v: n, set: true}
}

// ParseScore converts the persisted integer form: -1 is unset, 1..10 is a score.
func ParseScore(n int) (Score, error) {
	if n == -1 {
		return ScoreUnset, nil
	}
	if n < DefaultTargetMin || n > DefaultTargetMax {
		return ScoreUnset, fmt.Errorf("fontclass: score %d out of range", n)
	}
	return Score{v: n, set: true}, nil
}

// Get returns the score and whether it is set.
func (s Score) Get() (int, bool) { return s.v, s.set }

// IsSet reports whether the score has a value.
func (s Score) IsSet() bool { return s.set }

// Int returns the persisted integer form (-1 when unset).
func (s Score) Int() int {
	if !s.set {
		return -1
	}
	return s.v
}

func (s Score) String() string {
	if !s.set {
		return "unset"
	}
	return fmt.Sprint(s.v)
}

// Usage tags the intended use of a font in the catalog.
type Usage string

const (
	UsageUnknown Usage = "?"
	UsageHeader  Usage = "header"
	UsageBody    Usage = "body"
)

// Record is the catalog metadata kept per canonical identifier.
type Record struct {
	GFN     string
	Weight  Score
	Angle   Score
	Width   Score
	Usage   Usage
	Subsets []string
}

// NewRecord returns a record with every score unset and usage "?".
func NewRecord(gfn string) Record {
	return Record{GFN: gfn, Usage: UsageUnknown}
}

// Merge returns r with the scores computed in res. Scores res did not compute
// and every other field keep their previous values.
func (r Record) Merge(res FontResult) Record {
	if res.Weight.IsSet() {
		r.Weight = res.Weight
	}
	if res.Width.IsSet() {
		r.Width = res.Width
	}
	if res.Angle.IsSet() {
		r.Angle = res.Angle
	}
	return r
}

// Stats is a histogram of scores and usage tags over a set of records.
type Stats struct {
	Weight [DefaultTargetMax + 1]int // index = score; index 0 counts unset
	Width  [DefaultTargetMax + 1]int
	Angle  [DefaultTargetMax + 1]int
	Usage  map[Usage]int
}

// ComputeStats counts how many records fall on each score and usage tag.
func ComputeStats(records []Record) Stats {
	st := Stats{Usage: map[Usage]int{UsageUnknown: 0, UsageBody: 0, UsageHeader: 0}}
	bump := func(h *[DefaultTargetMax + 1]int, s Score) {
		v, ok := s.Get()
		if !ok {
			v = 0
		}
		h[v]++
	}
	for _, r := range records {
		bump(&st.Weight, r.Weight)
		bump(&st.Width, r.Width)
		bump(&st.Angle, r.Angle)
		st.Usage[r.Usage]++
	}
	return st
}

// String renders the histogram as a markdown list per field.
func (st Stats) String() string {
	var b strings.Builder
	hist := func(name string, h [DefaultTargetMax + 1]int) {
		fmt.Fprintf(&b, "\n## %s\n", name)
		for v := DefaultTargetMin; v <= DefaultTargetMax; v++ {
			fmt.Fprintf(&b, "* %d: %d\n", v, h[v])
		}
	}
	hist("weight", st.Weight)
	hist("width", st.Width)
	hist("angle", st.Angle)

	b.WriteString("\n## usage\n")
	tags := make([]string, 0, len(st.Usage))
	for u := range st.Usage {
		tags = append(tags, string(u))
	}
	sort.Strings(tags)
	for _, u := range tags {
		fmt.Fprintf(&b, "* %s: %d\n", u, st.Usage[Usage(u)])
	}
	return b.String()
}
