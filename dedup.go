package fontclass

import (
	"image"
	"log/slog"
	"math"

	"github.com/corona10/goimagehash"
)

// duplicateHashSide is the side of the difference hash grid; the hash has
// duplicateHashSide² bits. A single specimen line squeezed into the 8×8 grid
// of a plain dHash loses stroke weight and slant.
const duplicateHashSide = 16

// measurementTolerance is the relative difference below which two raw
// measurements are treated as equal.
const measurementTolerance = 0.01

// specimenHash is the perceptual hash of one font's specimen.
type specimenHash struct {
	font *FontResult
	hash *goimagehash.ExtImageHash
}

// hashSpecimen returns the extended difference hash of img. Returns nil if
// hashing fails for any reason (graceful degradation: the font is simply not compared).
func hashSpecimen(img image.Image) *goimagehash.ExtImageHash {
	if img == nil {
		return nil
	}
	h, err := goimagehash.ExtDifferenceHash(img, duplicateHashSide, duplicateHashSide)
	if err != nil {
		return nil
	}
	return h
}

// sameMeasurement reports whether a and b are equal within measurementTolerance.
// Fonts measured with different darkness or width are different programs
// however alike their specimens look.
func sameMeasurement(a, b RawMeasurement) bool {
	near := func(x, y float64) bool {
		return math.Abs(x-y) <= measurementTolerance*max(math.Abs(x), math.Abs(y))
	}
	return near(a.Darkness, b.Darkness) && near(a.Width, b.Width)
}

// findDuplicates reports every pair of fonts whose specimens hash closer than
// threshold and whose raw measurements agree. Typical causes are the same
// font program shipped under two filenames, or a family whose styles were not
// actually built.
func findDuplicates(fonts []FontResult, threshold int) []DuplicatePair {
	hashes := make([]specimenHash, 0, len(fonts))
	for i := range fonts {
		if fonts[i].specimen == nil {
			continue
		}
		if h := hashSpecimen(fonts[i].specimen.Alpha); h != nil {
			hashes = append(hashes, specimenHash{font: &fonts[i], hash: h})
		}
	}

	var pairs []DuplicatePair
	for i := range hashes {
		for j := i + 1; j < len(hashes); j++ {
			a, b := hashes[i].font, hashes[j].font
			if !sameMeasurement(a.Raw, b.Raw) || a.ItalicAngle != b.ItalicAngle {
				continue
			}
			dist, err := hashes[i].hash.Distance(hashes[j].hash)
			if err != nil || dist >= threshold {
				continue
			}
			slog.Debug("fontclass: duplicate specimen", "a", a.Path, "b", b.Path, "distance", dist)
			pairs = append(pairs, DuplicatePair{A: a.Path, B: b.Path, Distance: dist})
		}
	}
	return pairs
}
