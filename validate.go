package fontclass

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// MaxFontBytes is the largest font file accepted for classification.
const MaxFontBytes = 64 << 20

// sfntMagics are the first four bytes of the supported font containers.
var sfntMagics = [][]byte{
	{0x00, 0x01, 0x00, 0x00}, // TrueType
	[]byte("OTTO"),           // OpenType/CFF
	[]byte("true"),           // Apple TrueType
}

// ValidateFontFile cheaply checks a font file before any rendering:
//   - font file extension (see FontExtensions)
//   - regular file between the sfnt header size and MaxFontBytes
//   - sfnt version tag of a single-font TrueType/OpenType file
//
// Failures are *RenderError with Op "validate".
func ValidateFontFile(path string) error {
	fail := func(err error) error {
		return &RenderError{Path: path, Op: "validate", Err: err}
	}

	if !IsFontFile(path) {
		return fail(errors.New("not a font file extension"))
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	const headerSize = 12
	switch {
	case !st.Mode().IsRegular():
		return fail(errors.New("not a regular file"))
	case st.Size() < headerSize:
		return fail(fmt.Errorf("too small (%d bytes)", st.Size()))
	case st.Size() > MaxFontBytes:
		return fail(fmt.Errorf("too large (%d bytes)", st.Size()))
	}

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return fail(err)
	}
	for _, m := range sfntMagics {
		if bytes.Equal(magic, m) {
			return nil
		}
	}
	return fail(fmt.Errorf("unknown sfnt version %q", magic))
}
