// Package manifest reads dependency manifests whose text encoding is not
// known in advance. Requirement files produced on different machines have
// shown up as UTF-8, UTF-16 (with and without BOM) and windows-1252.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Manifest is a decoded dependency manifest.
type Manifest struct {
	Path     string
	Raw      []byte
	Encoding string
	Text     string
}

// Read loads the manifest at path, detecting its encoding.
func Read(path string) (*Manifest, error) {
	return ReadWithEncoding(path, "")
}

// ReadWithEncoding loads the manifest at path. A non-empty encodingName
// (any WHATWG label such as "utf-16le" or "windows-1252") overrides detection.
func ReadWithEncoding(path, encodingName string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Decode(raw, encodingName)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Decode decodes raw manifest bytes. Line endings are normalized to "\n".
func Decode(raw []byte, encodingName string) (*Manifest, error) {
	var enc encoding.Encoding
	var name string
	if encodingName != "" {
		e, err := htmlindex.Get(encodingName)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", encodingName, err)
		}
		enc = e
		name, _ = htmlindex.Name(e)
	} else {
		enc, name = Detect(raw)
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), raw)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(decoded), "\r\n", "\n")
	return &Manifest{Raw: raw, Encoding: name, Text: text}, nil
}

// Detect guesses the encoding of raw. Byte order marks win, then the NUL
// byte pattern of BOM-less UTF-16, then UTF-8 when the whole input is valid
// UTF-8. Anything else goes to HTML5 sniffing, which settles on windows-1252.
func Detect(raw []byte) (encoding.Encoding, string) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8, "utf-8"
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), "utf-16le"
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), "utf-16be"
	}
	if e, name, ok := sniffUTF16(raw); ok {
		return e, name
	}
	if utf8.Valid(raw) {
		return unicode.UTF8, "utf-8"
	}
	e, name, _ := charset.DetermineEncoding(raw, "text/plain")
	return e, name
}

// sniffUTF16 recognizes BOM-less UTF-16 holding mostly ASCII text, where every
// other byte is NUL.
func sniffUTF16(raw []byte) (encoding.Encoding, string, bool) {
	if len(raw) < 4 || len(raw)%2 != 0 {
		return nil, "", false
	}
	var evenNUL, oddNUL int
	for i, b := range raw {
		if b != 0 {
			continue
		}
		if i%2 == 0 {
			evenNUL++
		} else {
			oddNUL++
		}
	}
	half := len(raw) / 2
	switch {
	case oddNUL*10 >= half*9 && evenNUL == 0:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf-16le", true
	case evenNUL*10 >= half*9 && oddNUL == 0:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf-16be", true
	}
	return nil, "", false
}

// Specifiers returns the non-blank lines of the manifest, trimmed, in order.
func (m *Manifest) Specifiers() []string {
	var specs []string
	scanner := bufio.NewScanner(strings.NewReader(m.Text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			specs = append(specs, line)
		}
	}
	return specs
}
