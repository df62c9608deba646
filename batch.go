package fontclass

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Attributes selects which scores a batch computes.
type Attributes uint8

const (
	AttrWeight Attributes = 1 << iota // darkness => weight score
	AttrWidth                         // width => width score
	AttrAngle                         // declared italic angle => angle score

	AttrAll = AttrWeight | AttrWidth | AttrAngle
)

// ClassifyOpts configures one Classify call.
// Zero Attributes means AttrWeight|AttrWidth.
type ClassifyOpts struct {
	Attributes Attributes
}

// FontResult is the outcome for one font that survived the batch.
type FontResult struct {
	Path        string
	GFN         string // canonical identifier or Unknown
	ID          FontIdentifier
	Report      ResolutionReport
	Raw         RawMeasurement
	ItalicAngle float64 // declared slant in degrees, 0 if unreadable
	Weight      Score
	Width       Score
	Angle       Score
	PreviewPath string   // written specimen, "" if none
	Conflicts   []string // declared OS/2 attributes contradicting ID

	specimen *Raster
}

// SkippedFile is a font excluded from its batch.
type SkippedFile struct {
	Path  string
	Stage string // "validate", "measure", "angle", "collision", "panic"
	Err   error
}

// Collision lists files that resolved to the same identifier. The first path
// (in sorted order) is kept; the others are skipped.
type Collision struct {
	GFN   string
	Paths []string
}

// DuplicatePair reports two fonts whose specimens are perceptually identical.
type DuplicatePair struct {
	A, B     string
	Distance int
}

// BatchResult holds the per-file outcome of a Classify call.
type BatchResult struct {
	Fonts      []FontResult // sorted by path
	Skipped    []SkippedFile
	Collisions []Collision
	Duplicates []DuplicatePair
}

// Records returns one Record per resolved font, keyed by identifier.
// Fonts whose identifier is Unknown cannot be catalogued and are left out.
func (b *BatchResult) Records() map[string]Record {
	out := make(map[string]Record, len(b.Fonts))
	for _, f := range b.Fonts {
		if f.GFN == Unknown {
			slog.Info("fontclass: no record for unresolved font", "file", f.Path)
			continue
		}
		out[f.GFN] = NewRecord(f.GFN).Merge(f)
	}
	return out
}

// Lookup returns the result for path.
func (b *BatchResult) Lookup(path string) (FontResult, bool) {
	i := sort.Search(len(b.Fonts), func(i int) bool { return b.Fonts[i].Path >= path })
	if i < len(b.Fonts) && b.Fonts[i].Path == path {
		return b.Fonts[i], true
	}
	return FontResult{}, false
}

// Classify resolves, measures and scores a batch of fonts.
//
// Files are processed in parallel (cfg.Workers) with a per-file timeout.
// A file that fails validation, measurement or is a duplicate identifier is
// reported in Skipped and never reaches normalization. Scores are computed
// once every surviving file has been measured. The only error is
// ErrEmptyBatch, returned together with the partial result when no file
// survived.
func (cfg *Config) Classify(ctx context.Context, jobs []FontJob, opts ClassifyOpts) (*BatchResult, error) {
	if len(jobs) == 0 {
		return nil, ErrEmptyBatch
	}
	cfg.defaults()

	attrs := opts.Attributes
	if attrs == 0 {
		attrs = AttrWeight | AttrWidth
	}

	res := &BatchResult{}
	_ = cfg.withRasterizer(func(r Rasterizer) error {
		cfg.processAll(ctx, r, jobs, attrs, res)
		return nil
	})

	cfg.rejectCollisions(res)
	if len(res.Fonts) == 0 {
		return res, ErrEmptyBatch
	}
	if cfg.DuplicateThreshold > 0 {
		res.Duplicates = findDuplicates(res.Fonts, cfg.DuplicateThreshold)
	}
	if err := cfg.score(res, attrs); err != nil {
		return res, err
	}

	slog.Debug("fontclass: batch classified", "fonts", len(res.Fonts), "skipped", len(res.Skipped))
	return res, nil
}

func (cfg *Config) processAll(ctx context.Context, r Rasterizer, jobs []FontJob, attrs Attributes, res *BatchResult) {
	jobs = uniqueJobs(jobs)
	sem := make(chan struct{}, cfg.Workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job FontJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fr, skip := cfg.processOne(ctx, r, job, attrs)

			mu.Lock()
			defer mu.Unlock()
			if skip != nil {
				res.Skipped = append(res.Skipped, *skip)
				return
			}
			res.Fonts = append(res.Fonts, *fr)
		}(job)
	}
	wg.Wait()

	sort.Slice(res.Fonts, func(i, j int) bool { return res.Fonts[i].Path < res.Fonts[j].Path })
	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].Path < res.Skipped[j].Path })
}

// processOne resolves and measures a single font.
// Recovers from panics to protect the goroutine pool.
func (cfg *Config) processOne(ctx context.Context, r Rasterizer, job FontJob, attrs Attributes) (fr *FontResult, skip *SkippedFile) {
	defer func() {
		if rec := recover(); rec != nil {
			if cfg.OnPanic != nil {
				cfg.OnPanic("fontClassification", rec)
			}
			fr, skip = nil, cfg.skip(job.Path, "panic", fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := ValidateFontFile(job.Path); err != nil {
		return nil, cfg.skip(job.Path, "validate", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RenderTimeout)
	defer cancel()

	report := cfg.Resolver.Resolve(job.Path)
	if cfg.OnResolve != nil {
		cfg.OnResolve(job.Path, report)
	}
	if !report.Resolved {
		slog.Warn("fontclass: failed to detect GFN, defaults to unknown", "file", job.Path)
	}
	fr = &FontResult{Path: job.Path, GFN: report.GFN(), ID: report.ID, Report: report}

	if attrs&(AttrWeight|AttrWidth) != 0 {
		m, err := cfg.measureCached(ctx, r, job)
		if err != nil {
			return nil, cfg.skip(job.Path, "measure", err)
		}
		fr.Raw = m
	}

	info, err := ReadFontInfo(job.Path)
	switch {
	case err != nil && attrs&AttrAngle != 0:
		return nil, cfg.skip(job.Path, "angle", err)
	case err != nil:
		slog.Debug("fontclass: font info unavailable", "file", job.Path, "error", err.Error())
	default:
		fr.ItalicAngle = info.SlantDegrees()
		if report.Resolved {
			fr.Conflicts = info.Conflicts(report.ID)
			if len(fr.Conflicts) > 0 {
				slog.Warn("fontclass: declared attributes disagree with resolved identifier",
					"file", job.Path, "gfn", fr.GFN, "conflicts", fr.Conflicts)
			}
		}
	}

	if cfg.PreviewDir != "" || cfg.DuplicateThreshold > 0 {
		specimen, err := RenderSpecimen(ctx, r, job.Path, SpecimenText(job), cfg.PointSize)
		if err != nil {
			slog.Debug("fontclass: specimen render failed", "file", job.Path, "error", err.Error())
		} else {
			fr.specimen = specimen
			if cfg.PreviewDir != "" {
				fr.PreviewPath = cfg.writePreview(fr.GFN, job.Path, specimen)
			}
		}
	}
	return fr, nil
}

func (cfg *Config) skip(path, stage string, err error) *SkippedFile {
	slog.Warn("fontclass: font excluded from batch", "file", path, "stage", stage, "error", err.Error())
	s := &SkippedFile{Path: path, Stage: stage, Err: err}
	if cfg.OnSkip != nil {
		cfg.OnSkip(*s)
	}
	return s
}

// rejectCollisions keeps the first font per resolved identifier and moves
// the rest to Skipped.
func (cfg *Config) rejectCollisions(res *BatchResult) {
	owner := make(map[string]int)    // GFN -> index in res.Collisions
	first := make(map[string]string) // GFN -> kept path
	kept := res.Fonts[:0]
	for _, f := range res.Fonts {
		if f.GFN == Unknown {
			kept = append(kept, f)
			continue
		}
		p, taken := first[f.GFN]
		if !taken {
			first[f.GFN] = f.Path
			kept = append(kept, f)
			continue
		}
		idx, ok := owner[f.GFN]
		if !ok {
			idx = len(res.Collisions)
			owner[f.GFN] = idx
			res.Collisions = append(res.Collisions, Collision{GFN: f.GFN, Paths: []string{p}})
		}
		res.Collisions[idx].Paths = append(res.Collisions[idx].Paths, f.Path)
		res.Skipped = append(res.Skipped, *cfg.skip(f.Path, "collision",
			fmt.Errorf("identifier %s already assigned to %s", f.GFN, p)))
	}
	res.Fonts = kept
	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].Path < res.Skipped[j].Path })
}

// score normalizes every requested attribute independently over res.Fonts.
func (cfg *Config) score(res *BatchResult, attrs Attributes) error {
	type attribute struct {
		flag   Attributes
		policy DegeneratePolicy
		raw    func(FontResult) float64
		set    func(*FontResult, Score)
	}
	for _, a := range []attribute{
		{AttrWeight, cfg.DegeneratePolicy,
			func(f FontResult) float64 { return f.Raw.Darkness },
			func(f *FontResult, s Score) { f.Weight = s }},
		{AttrWidth, cfg.DegeneratePolicy,
			func(f FontResult) float64 { return f.Raw.Width },
			func(f *FontResult, s Score) { f.Width = s }},
		{AttrAngle, PolicyClampAbsolute,
			func(f FontResult) float64 { return f.ItalicAngle },
			func(f *FontResult, s Score) { f.Angle = s }},
	} {
		if attrs&a.flag == 0 {
			continue
		}
		raw := make(map[string]float64, len(res.Fonts))
		for _, f := range res.Fonts {
			raw[f.Path] = a.raw(f)
		}
		scores, err := Normalize(raw, NormalizeOpts{Policy: a.policy})
		if err != nil {
			return err
		}
		for i := range res.Fonts {
			a.set(&res.Fonts[i], NewScore(scores[res.Fonts[i].Path]))
		}
	}
	return nil
}

// uniqueJobs drops repeated paths, keeping the first occurrence.
func uniqueJobs(jobs []FontJob) []FontJob {
	seen := make(map[string]bool, len(jobs))
	out := make([]FontJob, 0, len(jobs))
	for _, j := range jobs {
		if seen[j.Path] {
			slog.Debug("fontclass: duplicate job ignored", "file", j.Path)
			continue
		}
		seen[j.Path] = true
		out = append(out, j)
	}
	return out
}
