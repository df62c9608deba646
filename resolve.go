package fontclass

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Strategy is one stage of the name resolution cascade.
type Strategy interface {
	Name() string
	Resolve(fontFile string) Resolution
}

// Resolver derives canonical identifiers by trying its strategies in order
// and stopping at the first one that resolves.
type Resolver struct {
	Strategies []Strategy
}

// NewResolver returns a Resolver with the default cascade:
// sidecar descriptor, filename convention, embedded name table.
func NewResolver() *Resolver {
	return &Resolver{Strategies: []Strategy{
		SidecarStrategy{},
		FilenameStrategy{},
		NameTableStrategy{},
	}}
}

// Resolve runs the cascade for fontFile. The report always lists every
// attempted stage; report.Resolved is false when all stages were exhausted.
func (r *Resolver) Resolve(fontFile string) ResolutionReport {
	report := ResolutionReport{Attempts: make([]Attempt, 0, len(r.Strategies))}
	for _, s := range r.Strategies {
		res := s.Resolve(fontFile)
		report.Attempts = append(report.Attempts, Attempt{Stage: s.Name(), Resolution: res})
		if res.Outcome == OutcomeResolved {
			report.ID = res.ID
			report.Resolved = true
			return report
		}
		slog.Debug("fontclass: resolution stage failed", "file", fontFile, "stage", s.Name(),
			"outcome", res.Outcome.String(), "detail", res.Detail)
	}
	return report
}

// Identify returns the identifier of fontFile, or ErrUnresolved.
func (r *Resolver) Identify(fontFile string) (FontIdentifier, error) {
	report := r.Resolve(fontFile)
	if !report.Resolved {
		return FontIdentifier{}, fmt.Errorf("%w: %s", ErrUnresolved, fontFile)
	}
	return report.ID, nil
}

// ResolveGFN returns the canonical identifier string of fontFile, or Unknown.
// Unresolved files are logged for manual follow-up.
func (cfg *Config) ResolveGFN(fontFile string) string {
	cfg.defaults()

	report := cfg.Resolver.Resolve(fontFile)
	if cfg.OnResolve != nil {
		cfg.OnResolve(fontFile, report)
	}
	if !report.Resolved {
		slog.Warn("fontclass: failed to detect GFN, defaults to unknown", "file", fontFile)
	}
	return report.GFN()
}

// SidecarStrategy reads the identifier from the family descriptor next to the font.
type SidecarStrategy struct{}

func (SidecarStrategy) Name() string { return "sidecar" }

func (SidecarStrategy) Resolve(fontFile string) Resolution {
	p, ok := descriptorPath(filepath.Dir(fontFile))
	if !ok {
		return NotFound("no " + DescriptorFileName)
	}
	desc, err := ReadFamilyDescriptor(p)
	if err != nil {
		return Failed(err)
	}
	entry, ok := desc.Lookup(fontFile)
	if !ok {
		return NotFound(fmt.Sprintf("%s has no entry for %s", DescriptorFileName, filepath.Base(fontFile)))
	}
	id := FontIdentifier{Family: desc.Name, Style: Style(entry.Style), Weight: Weight(entry.Weight)}
	if !id.Valid() {
		return Failed(fmt.Errorf("fontclass: descriptor entry for %s is incomplete: %q", entry.Filename, id.String()))
	}
	return Resolved(id, "declared in "+p)
}

// familyWeightRe matches the Family-StyleWeight.ext naming convention.
var familyWeightRe = regexp.MustCompile(`([^/-]+)-(\w+)\.(?i:ttf|otf)$`)

// FamilyStyleWeight is the identifier tuple derived from a filename.
type FamilyStyleWeight struct {
	File   string
	Family string
	Style  Style
	Weight Weight
}

// ParseFilename extracts family, style and weight from a Family-StyleWeight.ttf filename.
// It returns ok=false when the name does not follow the convention.
func ParseFilename(filename string) (rec FamilyStyleWeight, ok bool, err error) {
	m := familyWeightRe.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return FamilyStyleWeight{}, false, nil
	}
	style, weight, err := ParseStyleWeight(m[2])
	if err != nil {
		return FamilyStyleWeight{}, true, err
	}
	return FamilyStyleWeight{
		File:   filename,
		Family: FamilyFromFontName(m[1]),
		Style:  style,
		Weight: weight,
	}, true, nil
}

// FamilyStyleWeights parses every conventionally named font file in dir.
// Records are ordered by weight, normal before italic. Every record must
// share one family, otherwise a *NameAmbiguityError is returned.
func FamilyStyleWeights(dir string) ([]FamilyStyleWeight, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var recs []FamilyStyleWeight
	families := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() || !IsFontFile(e.Name()) {
			continue
		}
		rec, ok, err := ParseFilename(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("fontclass: parse %s: %w", e.Name(), err)
		}
		if !ok {
			continue
		}
		recs = append(recs, rec)
		families[rec.Family] = true
	}

	if len(families) > 1 {
		names := make([]string, 0, len(families))
		for f := range families {
			names = append(names, f)
		}
		sort.Strings(names)
		return nil, &NameAmbiguityError{Dir: dir, Families: names}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Weight != recs[j].Weight {
			return recs[i].Weight < recs[j].Weight
		}
		return recs[i].Style == StyleNormal && recs[j].Style == StyleItalic
	})
	return recs, nil
}

// FilenameStrategy derives the identifier from the directory's naming convention.
// It only applies to directories without a family descriptor.
type FilenameStrategy struct{}

func (FilenameStrategy) Name() string { return "filename" }

func (FilenameStrategy) Resolve(fontFile string) Resolution {
	dir := filepath.Dir(fontFile)
	if _, ok := descriptorPath(dir); ok {
		return NotFound(DescriptorFileName + " present; filename convention not consulted")
	}
	recs, err := FamilyStyleWeights(dir)
	if err != nil {
		return Failed(err)
	}
	base := filepath.Base(fontFile)
	for _, rec := range recs {
		if filepath.Base(rec.File) == base {
			return Resolved(FontIdentifier{Family: rec.Family, Style: rec.Style, Weight: rec.Weight}, "filename convention")
		}
	}
	return NotFound("filename does not follow Family-StyleWeight convention")
}

// NameTableStrategy reads family and subfamily names from the font itself.
type NameTableStrategy struct{}

func (NameTableStrategy) Name() string { return "name_table" }

func (NameTableStrategy) Resolve(fontFile string) Resolution {
	family, subfamily, err := ReadNames(fontFile)
	if err != nil {
		return Failed(err)
	}
	if family == "" {
		return NotFound("empty family name in name table")
	}
	// "Bold Italic" => "BoldItalic"
	style, weight, err := ParseStyleWeight(strings.ReplaceAll(subfamily, " ", ""))
	if err != nil {
		return Failed(err)
	}
	slog.Debug("fontclass: GFN from name table entries", "file", fontFile, "family", family, "subfamily", subfamily)
	return Resolved(FontIdentifier{Family: family, Style: style, Weight: weight}, "name table")
}

var stripNonASCII = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
}))

// ASCIIOnly removes every non-ASCII rune from s and trims surrounding space.
func ASCIIOnly(s string) string {
	out, _, err := transform.String(stripNonASCII, s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(out)
}

// ReadNames returns the family (name ID 1) and subfamily (name ID 2) records
// of a font file with non-ASCII characters stripped. A missing subfamily is
// returned as "".
func ReadNames(fontFile string) (family, subfamily string, err error) {
	data, err := os.ReadFile(fontFile)
	if err != nil {
		return "", "", err
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return "", "", fmt.Errorf("fontclass: parse %s: %w", fontFile, err)
	}
	var buf sfnt.Buffer
	family, err = f.Name(&buf, sfnt.NameIDFamily)
	if err != nil && !errors.Is(err, sfnt.ErrNotFound) {
		return "", "", fmt.Errorf("fontclass: read family name: %w", err)
	}
	subfamily, err = f.Name(&buf, sfnt.NameIDSubfamily)
	if err != nil && !errors.Is(err, sfnt.ErrNotFound) {
		return "", "", fmt.Errorf("fontclass: read subfamily name: %w", err)
	}
	return ASCIIOnly(family), ASCIIOnly(subfamily), nil
}
