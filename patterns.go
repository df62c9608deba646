package fontclass

import (
	"path/filepath"
	"strings"
)

// FontExtensions are the file extensions treated as font programs.
var FontExtensions = []string{".ttf", ".otf"}

// IsFontFile checks if a path has one of FontExtensions (case-insensitive).
func IsFontFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range FontExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
