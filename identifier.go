package fontclass

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Unknown is the identifier string reported for fonts no strategy could resolve.
const Unknown = "unknown"

// Style is the slant component of a font identifier.
type Style string

const (
	StyleNormal Style = "normal"
	StyleItalic Style = "italic"
)

// Valid reports whether s is one of the two known styles.
func (s Style) Valid() bool {
	return s == StyleNormal || s == StyleItalic
}

// Weight is a typographic weight on the 100..900 scale.
type Weight int

// Weights lists the fixed weight scale in ascending order.
var Weights = []Weight{100, 200, 300, 400, 500, 600, 700, 800, 900}

// Valid reports whether w is a member of the weight scale.
func (w Weight) Valid() bool {
	return w >= 100 && w <= 900 && w%100 == 0
}

// knownWeights maps style/weight name tokens to weights. The empty token
// covers "Family-Italic.ttf".
var knownWeights = map[string]Weight{
	"Thin":       100,
	"Hairline":   100,
	"ExtraLight": 200,
	"Light":      300,
	"Regular":    400,
	"":           400,
	"Medium":     500,
	"SemiBold":   600,
	"Bold":       700,
	"ExtraBold":  800,
	"Black":      900,
}

// FontIdentifier is the canonical family:style:weight triple of a font.
type FontIdentifier struct {
	Family string
	Style  Style
	Weight Weight
}

// String returns the canonical "{family}:{style}:{weight}" form.
func (id FontIdentifier) String() string {
	return fmt.Sprintf("%s:%s:%d", id.Family, id.Style, id.Weight)
}

// Valid reports whether every component of the triple is set and well-formed.
func (id FontIdentifier) Valid() bool {
	return id.Family != "" && id.Style.Valid() && id.Weight.Valid()
}

// ParseIdentifier parses the canonical "{family}:{style}:{weight}" form.
// The family may itself contain colons; style and weight are taken from the end.
func ParseIdentifier(s string) (FontIdentifier, error) {
	weightSep := strings.LastIndexByte(s, ':')
	if weightSep < 0 {
		return FontIdentifier{}, fmt.Errorf("fontclass: malformed identifier %q", s)
	}
	styleSep := strings.LastIndexByte(s[:weightSep], ':')
	if styleSep <= 0 {
		return FontIdentifier{}, fmt.Errorf("fontclass: malformed identifier %q", s)
	}
	w, err := strconv.Atoi(s[weightSep+1:])
	if err != nil {
		return FontIdentifier{}, fmt.Errorf("fontclass: malformed weight in %q: %w", s, err)
	}
	id := FontIdentifier{
		Family: s[:styleSep],
		Style:  Style(s[styleSep+1 : weightSep]),
		Weight: Weight(w),
	}
	if !id.Valid() {
		return FontIdentifier{}, fmt.Errorf("fontclass: invalid identifier %q", s)
	}
	return id, nil
}

// ParseStyleWeight splits a style/weight token such as "Bold", "Regular" or
// "ExtraLightItalic" into its style and weight.
func ParseStyleWeight(token string) (Style, Weight, error) {
	style := StyleNormal
	name := token
	if rest, ok := strings.CutSuffix(token, "Italic"); ok {
		style = StyleItalic
		name = rest
	}
	w, ok := knownWeights[name]
	if !ok {
		return "", 0, &WeightTokenError{Token: token}
	}
	return style, w, nil
}

var (
	// SomethingUpper => Something Upper
	camelWordRe = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	// Font3 => Font 3
	letterDigitRe = regexp.MustCompile(`([a-z])([0-9]+)`)
	// lookHere => look Here
	lowerUpperRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// FamilyFromFontName rebuilds a family name from the family segment of a
// filename, e.g. "HPSimplifiedSans" => "HP Simplified Sans".
func FamilyFromFontName(name string) string {
	name = camelWordRe.ReplaceAllString(name, "$1 $2")
	name = letterDigitRe.ReplaceAllString(name, "$1 $2")
	return lowerUpperRe.ReplaceAllString(name, "$1 $2")
}
