package fontclass

import (
	"fmt"
	"math"
	"os"

	"seehuhn.de/go/sfnt"
)

// FontInfo holds the declared (not rendered) attributes of a font program.
type FontInfo struct {
	WeightClass int     // OS/2 usWeightClass, 0 if absent
	IsItalic    bool    // italic bit of the font's style flags
	ItalicAngle float64 // degrees counterclockwise from vertical (post table)
	XHeight     float64 // em fraction, 0 if not declared
}

// SlantDegrees returns the magnitude of the italic angle; upright fonts are 0.
func (fi *FontInfo) SlantDegrees() float64 {
	return math.Abs(fi.ItalicAngle)
}

// Conflicts lists the ways the declared attributes contradict id, which was
// resolved from metadata or the filename. An empty result means they agree
// or the font declares nothing to compare.
func (fi *FontInfo) Conflicts(id FontIdentifier) []string {
	var out []string
	if fi.WeightClass != 0 && Weight(fi.WeightClass) != id.Weight {
		out = append(out, fmt.Sprintf("weight class %d, resolved %d", fi.WeightClass, id.Weight))
	}
	if id.Style.Valid() && fi.IsItalic != (id.Style == StyleItalic) {
		out = append(out, fmt.Sprintf("italic flag %t, resolved %s", fi.IsItalic, id.Style))
	}
	return out
}

// ReadFontInfo parses the font's header tables without rendering anything.
func ReadFontInfo(fontFile string) (*FontInfo, error) {
	fd, err := os.Open(fontFile)
	if err != nil {
		return nil, &RenderError{Path: fontFile, Op: "font info", Err: err}
	}
	defer fd.Close()

	f, err := sfnt.Read(fd)
	if err != nil {
		return nil, &RenderError{Path: fontFile, Op: "font info", Err: fmt.Errorf("parse: %w", err)}
	}

	info := &FontInfo{
		WeightClass: int(f.Weight),
		IsItalic:    f.IsItalic,
		ItalicAngle: f.ItalicAngle,
	}
	if f.UnitsPerEm > 0 {
		info.XHeight = float64(f.XHeight) / float64(f.UnitsPerEm)
	}
	return info, nil
}
