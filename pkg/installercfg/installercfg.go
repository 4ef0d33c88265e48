// Package installercfg generates the declarative config consumed by the
// installer generator (pynsist). The output follows Python configparser
// conventions so the generator can read it back unchanged.
package installercfg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"release-tools/go/pkg/manifest"
)

// Section names and their keys, in output order. Every key is always written.
var Layout = []struct {
	Section string
	Keys    []string
}{
	{"Application", []string{"name", "version", "entry_point", "console"}},
	{"Python", []string{"version"}},
	{"Include", []string{"pypi_wheels", "extra_wheel_sources"}},
}

// Application is the metadata of the packaged program.
type Application struct {
	Name       string
	Version    string
	EntryPoint string
	Console    bool
}

// Options parameterize a generated config.
type Options struct {
	Application       Application
	PythonVersion     string
	Requirements      string // path of the requirements manifest
	Encoding          string // explicit manifest encoding, empty to detect
	ExtraWheelSources string
}

// Build reads the requirements manifest and assembles the config in memory.
// It also returns the manifest so callers can report the detected encoding.
func Build(opts Options) (*ini.File, *manifest.Manifest, error) {
	m, err := manifest.ReadWithEncoding(opts.Requirements, opts.Encoding)
	if err != nil {
		return nil, nil, err
	}
	values := map[string]map[string]string{
		"Application": {
			"name":        opts.Application.Name,
			"version":     opts.Application.Version,
			"entry_point": opts.Application.EntryPoint,
			"console":     strconv.FormatBool(opts.Application.Console),
		},
		"Python": {
			"version": opts.PythonVersion,
		},
		"Include": {
			"pypi_wheels":         strings.TrimSpace(m.Text),
			"extra_wheel_sources": opts.ExtraWheelSources,
		},
	}

	f := ini.Empty()
	for _, s := range Layout {
		sec, err := f.NewSection(s.Section)
		if err != nil {
			return nil, nil, err
		}
		for _, k := range s.Keys {
			if _, err := sec.NewKey(k, values[s.Section][k]); err != nil {
				return nil, nil, err
			}
		}
	}
	return f, m, nil
}

// Generate builds the config, checks it and writes it to path.
func Generate(path string, opts Options) (*ini.File, *manifest.Manifest, error) {
	f, m, err := Build(opts)
	if err != nil {
		return nil, nil, err
	}
	if err := Check(f); err != nil {
		return nil, nil, err
	}
	if err := Write(path, f); err != nil {
		return nil, nil, err
	}
	return f, m, nil
}

// Write encodes f to path.
func Write(path string, f *ini.File) error {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write installer config: %w", err)
	}
	return nil
}

// Encode writes f the way configparser does: "key = value", continuation
// lines indented with a tab, and a blank line after every section.
func Encode(w io.Writer, f *ini.File) error {
	bw := bufio.NewWriter(w)
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		fmt.Fprintf(bw, "[%s]\n", sec.Name())
		for _, key := range sec.Keys() {
			fmt.Fprintf(bw, "%s = %s\n", key.Name(), strings.ReplaceAll(key.Value(), "\n", "\n\t"))
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Read loads a config written by Encode or by configparser.
func Read(path string) (*ini.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	f, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse reads configparser syntax line by line. Indented lines continue the
// value of the previous key no matter how long that value grows, and blank
// lines inside a value are kept when more continuation lines follow. Keys are
// lowercased like configparser's default optionxform.
func Parse(r io.Reader) (*ini.File, error) {
	f := ini.Empty()
	var (
		sec    *ini.Section
		key    *ini.Key
		value  strings.Builder
		blanks int
	)
	flush := func() {
		if key != nil {
			key.SetValue(value.String())
		}
		key = nil
		value.Reset()
		blanks = 0
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if key != nil {
				blanks++
			}
			continue
		}
		if trimmed[0] == '#' || trimmed[0] == ';' {
			continue
		}
		if indented := line[0] == ' ' || line[0] == '\t'; indented && key != nil {
			for ; blanks > 0; blanks-- {
				value.WriteString("\n")
			}
			value.WriteString("\n")
			value.WriteString(trimmed)
			continue
		}
		flush()

		if trimmed[0] == '[' {
			end := strings.IndexByte(trimmed, ']')
			if end < 0 {
				return nil, fmt.Errorf("line %d: unterminated section header", lineNo)
			}
			s, err := f.NewSection(trimmed[1:end])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			sec = s
			continue
		}
		if sec == nil {
			return nil, fmt.Errorf("line %d: key outside of any section", lineNo)
		}
		i := strings.IndexAny(trimmed, "=:")
		if i <= 0 {
			return nil, fmt.Errorf("line %d: key-value delimiter not found", lineNo)
		}
		k, err := sec.NewKey(strings.ToLower(strings.TrimSpace(trimmed[:i])), "")
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		key = k
		value.WriteString(strings.TrimSpace(trimmed[i+1:]))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return f, nil
}

// Check reports the first section or key of Layout missing from f.
func Check(f *ini.File) error {
	for _, s := range Layout {
		sec, err := f.GetSection(s.Section)
		if err != nil {
			return fmt.Errorf("installer config: missing section [%s]", s.Section)
		}
		for _, k := range s.Keys {
			if !sec.HasKey(k) {
				return fmt.Errorf("installer config: missing key %s.%s", s.Section, k)
			}
		}
	}
	return nil
}
