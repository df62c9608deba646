package fontclass

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goitalic"
)

// lobsterBatch writes three header-only Lobster weights whose fake renders
// measure darkness 0.1, 0.3 and 0.5.
func lobsterBatch(t *testing.T) (dir string, fake *fakeRasterizer) {
	t.Helper()
	dir = t.TempDir()
	ext := Extent{Width: 100, Height: 10, XHeight: 5}
	fake = &fakeRasterizer{fonts: map[string]fakeFont{
		"Lobster-Thin.ttf":    {extent: ext, fill: 51},
		"Lobster-Regular.ttf": {extent: ext, fill: 153},
		"Lobster-Black.ttf":   {extent: ext, fill: 255},
	}}
	for name := range fake.fonts {
		headerOnlyFont(t, dir, name)
	}
	return dir, fake
}

func scoresByGFN(res *BatchResult) map[string][2]int {
	out := make(map[string][2]int, len(res.Fonts))
	for _, f := range res.Fonts {
		out[f.GFN] = [2]int{f.Weight.Int(), f.Width.Int()}
	}
	return out
}

func TestClassify_Scores(t *testing.T) {
	t.Parallel()

	dir, fake := lobsterBatch(t)
	cfg := &Config{Rasterizer: fake, DuplicateThreshold: -1}

	res, err := cfg.Classify(context.Background(), jobs(
		filepath.Join(dir, "Lobster-Thin.ttf"),
		filepath.Join(dir, "Lobster-Regular.ttf"),
		filepath.Join(dir, "Lobster-Black.ttf"),
	), ClassifyOpts{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	// Equal widths collapse to the midpoint.
	want := map[string][2]int{
		"Lobster:normal:100": {1, 5},
		"Lobster:normal:400": {5, 5},
		"Lobster:normal:900": {10, 5},
	}
	if diff := cmp.Diff(want, scoresByGFN(res)); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
	for _, f := range res.Fonts {
		if f.Angle.IsSet() {
			t.Errorf("%s: angle scored without AttrAngle", f.GFN)
		}
	}
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %+v, want none", res.Skipped)
	}
}

func TestClassify_ClampPolicyForWidth(t *testing.T) {
	t.Parallel()

	dir, fake := lobsterBatch(t)
	cfg := &Config{Rasterizer: fake, DuplicateThreshold: -1, DegeneratePolicy: PolicyClampAbsolute, WidthMode: WidthPixels}

	res, err := cfg.Classify(context.Background(), jobs(
		filepath.Join(dir, "Lobster-Thin.ttf"),
		filepath.Join(dir, "Lobster-Black.ttf"),
	), ClassifyOpts{Attributes: AttrWidth})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range res.Fonts {
		if f.Width.Int() != 10 {
			t.Errorf("%s: width = %s, want 10 (100px clamped)", f.GFN, f.Width)
		}
		if f.Weight.IsSet() {
			t.Errorf("%s: weight scored without AttrWeight", f.GFN)
		}
	}
}

func TestClassify_SkipsFailuresWithoutAbortingBatch(t *testing.T) {
	t.Parallel()

	dir, fake := lobsterBatch(t)
	fake.fonts["Lobster-Light.ttf"] = fakeFont{extent: Extent{Width: 0, Height: 10, XHeight: 5}}
	fake.fonts["Lobster-Medium.ttf"] = fakeFont{err: &RenderError{Op: "glyphs", Err: errFake}}
	fake.fonts["Lobster-Bold.ttf"] = fakeFont{extent: Extent{Width: 100, Height: 10, XHeight: 5}, panic: true}
	for _, name := range []string{"Lobster-Light.ttf", "Lobster-Medium.ttf", "Lobster-Bold.ttf"} {
		headerOnlyFont(t, dir, name)
	}
	if err := os.WriteFile(filepath.Join(dir, "Lobster-SemiBold.ttf"), []byte("<html>not a font</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	var (
		mu       sync.Mutex
		skipped  = map[string]string{}
		panicTag string
	)
	cfg := &Config{
		Rasterizer:         fake,
		DuplicateThreshold: -1,
		OnSkip: func(s SkippedFile) {
			mu.Lock()
			defer mu.Unlock()
			skipped[filepath.Base(s.Path)] = s.Stage
		},
		OnPanic: func(tag string, _ any) {
			mu.Lock()
			defer mu.Unlock()
			panicTag = tag
		},
	}

	var paths []string
	for _, name := range []string{
		"Lobster-Thin.ttf", "Lobster-Light.ttf", "Lobster-Regular.ttf", "Lobster-Medium.ttf",
		"Lobster-SemiBold.ttf", "Lobster-Bold.ttf", "Lobster-Black.ttf",
	} {
		paths = append(paths, filepath.Join(dir, name))
	}
	res, err := cfg.Classify(context.Background(), jobs(paths...), ClassifyOpts{Attributes: AttrWeight})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	wantSkipped := map[string]string{
		"Lobster-Light.ttf":    "measure",
		"Lobster-Medium.ttf":   "measure",
		"Lobster-SemiBold.ttf": "validate",
		"Lobster-Bold.ttf":     "panic",
	}
	if diff := cmp.Diff(wantSkipped, skipped); diff != "" {
		t.Errorf("OnSkip mismatch (-want +got):\n%s", diff)
	}
	if len(res.Skipped) != len(wantSkipped) {
		t.Errorf("len(Skipped) = %d, want %d", len(res.Skipped), len(wantSkipped))
	}
	if panicTag != "fontClassification" {
		t.Errorf("OnPanic tag = %q", panicTag)
	}

	for _, s := range res.Skipped {
		if filepath.Base(s.Path) != "Lobster-Light.ttf" {
			continue
		}
		var de *DegenerateMeasurementError
		if !errors.As(s.Err, &de) {
			t.Errorf("Light skipped with %v, want *DegenerateMeasurementError", s.Err)
		}
	}

	// Skipped files do not shift the surviving scores.
	want := map[string][2]int{
		"Lobster:normal:100": {1, -1},
		"Lobster:normal:400": {5, -1},
		"Lobster:normal:900": {10, -1},
	}
	if diff := cmp.Diff(want, scoresByGFN(res)); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_EmptyBatch(t *testing.T) {
	t.Parallel()

	cfg := &Config{Rasterizer: &fakeRasterizer{}}
	res, err := cfg.Classify(context.Background(), nil, ClassifyOpts{})
	if !errors.Is(err, ErrEmptyBatch) || res != nil {
		t.Errorf("Classify(nil) = %v, %v; want nil, ErrEmptyBatch", res, err)
	}

	dir := t.TempDir()
	res, err = cfg.Classify(context.Background(), jobs(filepath.Join(dir, "Missing-Regular.ttf")), ClassifyOpts{})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("Classify(all failing) error = %v, want ErrEmptyBatch", err)
	}
	if res == nil || len(res.Skipped) != 1 || res.Skipped[0].Stage != "validate" {
		t.Errorf("partial result = %+v, want one validate skip", res)
	}
}

func TestClassify_SingleFontIsDegenerate(t *testing.T) {
	t.Parallel()

	dir, fake := lobsterBatch(t)
	cfg := &Config{Rasterizer: fake, DuplicateThreshold: -1}

	res, err := cfg.Classify(context.Background(), jobs(filepath.Join(dir, "Lobster-Black.ttf")), ClassifyOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if got := scoresByGFN(res)["Lobster:normal:900"]; got != [2]int{5, 5} {
		t.Errorf("scores = %v, want midpoint", got)
	}
}

func TestClassify_Collision(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := headerOnlyFont(t, filepath.Join(root, "a"), "Lobster-Regular.ttf")
	b := headerOnlyFont(t, filepath.Join(root, "b"), "Lobster-Regular.ttf")
	cfg := &Config{Rasterizer: &fakeRasterizer{}, DuplicateThreshold: -1}

	res, err := cfg.Classify(context.Background(), jobs(b, a), ClassifyOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Fonts) != 1 || res.Fonts[0].Path != a {
		t.Fatalf("Fonts = %+v, want only %s", res.Fonts, a)
	}
	want := []Collision{{GFN: "Lobster:normal:400", Paths: []string{a, b}}}
	if diff := cmp.Diff(want, res.Collisions); diff != "" {
		t.Errorf("Collisions mismatch (-want +got):\n%s", diff)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Path != b || res.Skipped[0].Stage != "collision" {
		t.Errorf("Skipped = %+v, want collision for %s", res.Skipped, b)
	}
}

func TestClassify_DuplicateJobsAndUnknown(t *testing.T) {
	t.Parallel()

	dir, fake := lobsterBatch(t)
	mystery := headerOnlyFont(t, filepath.Join(dir, "misc"), "mystery.ttf")
	regular := filepath.Join(dir, "Lobster-Regular.ttf")
	cfg := &Config{Rasterizer: fake, DuplicateThreshold: -1}

	res, err := cfg.Classify(context.Background(), jobs(regular, mystery, regular), ClassifyOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Fonts) != 2 {
		t.Fatalf("len(Fonts) = %d, want 2", len(res.Fonts))
	}

	fr, ok := res.Lookup(mystery)
	if !ok || fr.GFN != Unknown || !fr.Weight.IsSet() {
		t.Errorf("Lookup(mystery) = %+v, %v; want scored unknown font", fr, ok)
	}
	if _, ok := res.Lookup(filepath.Join(dir, "absent.ttf")); ok {
		t.Error("Lookup(absent) ok = true")
	}

	recs := res.Records()
	if _, ok := recs[Unknown]; ok {
		t.Error("Records() contains the unknown identifier")
	}
	rec, ok := recs["Lobster:normal:400"]
	if !ok || !rec.Weight.IsSet() || !rec.Width.IsSet() || rec.Angle.IsSet() || rec.Usage != UsageUnknown {
		t.Errorf("Records()[Lobster:normal:400] = %+v", rec)
	}
}

func TestClassify_DuplicateSpecimens(t *testing.T) {
	t.Parallel()

	dir, fake := lobsterBatch(t)
	fake.fonts["Lobster-Medium.ttf"] = fake.fonts["Lobster-Black.ttf"]
	headerOnlyFont(t, dir, "Lobster-Medium.ttf")

	thin := filepath.Join(dir, "Lobster-Thin.ttf")
	medium := filepath.Join(dir, "Lobster-Medium.ttf")
	black := filepath.Join(dir, "Lobster-Black.ttf")

	tests := []struct {
		name      string
		threshold int
		want      []DuplicatePair
	}{
		{name: "off by default", threshold: 0},
		{name: "disabled", threshold: -1},
		// Thin hashes like the others but measures lighter.
		{name: "enabled", threshold: SuggestedDuplicateThreshold, want: []DuplicatePair{{A: black, B: medium, Distance: 0}}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Rasterizer: fake, DuplicateThreshold: tc.threshold}
			res, err := cfg.Classify(context.Background(), jobs(thin, medium, black), ClassifyOpts{})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, res.Duplicates); diff != "" {
				t.Errorf("Duplicates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify_DuplicatesFromRealFonts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	regular := regularFont(t, dir, "Go-Regular.ttf")
	bold := boldFont(t, dir, "Go-Bold.ttf")
	italic := writeFont(t, dir, "Go-Italic.ttf", goitalic.TTF)

	copies := t.TempDir()
	copyA := regularFont(t, copies, "CopyA.ttf")
	copyB := regularFont(t, copies, "CopyB.ttf")
	descriptor := `name: "Go Copy"
fonts { style: "normal" weight: 400 filename: "CopyA.ttf" }
fonts { style: "normal" weight: 500 filename: "CopyB.ttf" }
`
	if err := os.WriteFile(filepath.Join(copies, DescriptorFileName), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewOpenTypeRasterizer()
	defer r.Close()

	res, err := (&Config{Rasterizer: r}).Classify(context.Background(), jobs(regular, bold), ClassifyOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Duplicates) != 0 {
		t.Errorf("default config reported duplicates %+v", res.Duplicates)
	}

	// Sibling styles of one family are not duplicates.
	cfg := &Config{Rasterizer: r, DuplicateThreshold: SuggestedDuplicateThreshold}
	res, err = cfg.Classify(context.Background(), jobs(regular, bold, italic), ClassifyOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Duplicates) != 0 {
		t.Errorf("Go Regular, Bold and Italic reported as duplicates %+v", res.Duplicates)
	}

	res, err = cfg.Classify(context.Background(), jobs(bold, copyA, copyB), ClassifyOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Fonts) != 3 {
		t.Fatalf("len(Fonts) = %d, skipped %+v", len(res.Fonts), res.Skipped)
	}
	want := []DuplicatePair{{A: copyA, B: copyB, Distance: 0}}
	if diff := cmp.Diff(want, res.Duplicates); diff != "" {
		t.Errorf("Duplicates mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_Preview(t *testing.T) {
	t.Parallel()

	dir, fake := lobsterBatch(t)
	previews := filepath.Join(t.TempDir(), "previews")
	cfg := &Config{Rasterizer: fake, DuplicateThreshold: -1, PreviewDir: previews}

	res, err := cfg.Classify(context.Background(), jobs(filepath.Join(dir, "Lobster-Regular.ttf")), ClassifyOpts{})
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(previews, "Lobster_normal_400.png")
	if got := res.Fonts[0].PreviewPath; got != want {
		t.Errorf("PreviewPath = %q, want %q", got, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("preview not written: %v", err)
	}
}

func TestClassify_AngleFromRealFonts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	regular := regularFont(t, dir, "Go-Regular.ttf")
	bold := boldFont(t, dir, "Go-Bold.ttf")
	cfg := &Config{DuplicateThreshold: -1}

	res, err := cfg.Classify(context.Background(), jobs(regular, bold), ClassifyOpts{Attributes: AttrAll})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(res.Fonts) != 2 {
		t.Fatalf("len(Fonts) = %d, skipped %+v", len(res.Fonts), res.Skipped)
	}

	got := map[string][3]int{}
	for _, f := range res.Fonts {
		got[f.GFN] = [3]int{f.Weight.Int(), f.Angle.Int(), int(f.ItalicAngle)}
	}
	// Two fonts span the whole range; upright angles clamp to the minimum.
	want := map[string][3]int{
		"Go:normal:400": {1, 1, 0},
		"Go:normal:700": {10, 1, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_Cancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := regularFont(t, dir, "Go-Regular.ttf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &Config{DuplicateThreshold: -1}
	res, err := cfg.Classify(ctx, jobs(p), ClassifyOpts{})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("Classify(cancelled) error = %v, want ErrEmptyBatch", err)
	}
	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0].Err, context.Canceled) {
		t.Errorf("Skipped = %+v, want cancellation", res.Skipped)
	}
}

func TestClassify_DeclaredAttributeConflicts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "matching", path: regularFont(t, filepath.Join(dir, "a"), "Go-Regular.ttf")},
		{name: "bold named regular", path: boldFont(t, filepath.Join(dir, "b"), "Go-Regular.ttf"), want: 1},
		{name: "regular named italic", path: regularFont(t, filepath.Join(dir, "c"), "Go-Italic.ttf"), want: 1},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Rasterizer: &fakeRasterizer{}}
			res, err := cfg.Classify(context.Background(), jobs(tc.path), ClassifyOpts{})
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Fonts) != 1 {
				t.Fatalf("Fonts = %+v, skipped %+v", res.Fonts, res.Skipped)
			}
			if got := res.Fonts[0].Conflicts; len(got) != tc.want {
				t.Errorf("Conflicts = %q, want %d entries", got, tc.want)
			}
		})
	}
}
