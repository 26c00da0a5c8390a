package dataprocessing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// textEncoding is a named decoder for raw file bytes. A nil charmap means
// strict UTF-8, which is the only encoding whose decoding can fail.
type textEncoding struct {
	name    string
	charmap encoding.Encoding
}

// lookupEncoding resolves a configured encoding name
func lookupEncoding(name string) (textEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return textEncoding{name: "utf-8"}, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return textEncoding{name: "latin1", charmap: charmap.ISO8859_1}, nil
	case "windows-1252", "cp1252":
		return textEncoding{name: "windows-1252", charmap: charmap.Windows1252}, nil
	case "iso-8859-15", "latin9":
		return textEncoding{name: "iso-8859-15", charmap: charmap.ISO8859_15}, nil
	default:
		return textEncoding{}, fmt.Errorf("unsupported encoding %q", name)
	}
}

// decode converts raw bytes to a Go string
func (e textEncoding) decode(data []byte) (string, error) {
	if e.charmap == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: input is not valid %s", ErrDecode, e.name)
		}
		return string(data), nil
	}

	decoded, err := e.charmap.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDecode, e.name, err)
	}
	return string(decoded), nil
}
