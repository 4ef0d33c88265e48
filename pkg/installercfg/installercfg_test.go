package installercfg

import (
	"os"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"gopkg.in/ini.v1"
)

const wantConfig = `[Application]
name = Bench Business Tools
version = 2.0
entry_point = myapp:main
console = false

[Python]
version = 3.11.1

[Include]
pypi_wheels = Django==4.2.7
	Pillow==10.1.0
extra_wheel_sources = wheels/

`

func testOptions(requirements string) Options {
	return Options{
		Application: Application{
			Name:       "Bench Business Tools",
			Version:    "2.0",
			EntryPoint: "myapp:main",
		},
		PythonVersion:     "3.11.1",
		Requirements:      requirements,
		ExtraWheelSources: "wheels/",
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestGenerate_Golden(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, dir, "bench_requirements.txt", []byte("Django==4.2.7\r\nPillow==10.1.0\r\n"))
	out := filepath.Join(dir, "installer.cfg")

	_, m, err := Generate(out, testOptions(req))
	require.NoError(t, err)
	assert.Equal(t, "utf-8", m.Encoding)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, wantConfig, string(got))
}

func TestGenerate_Deterministic(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, dir, "bench_requirements.txt", []byte("b==2\na==1\nc==3\n"))

	first := filepath.Join(dir, "first.cfg")
	second := filepath.Join(dir, "second.cfg")
	_, _, err := Generate(first, testOptions(req))
	require.NoError(t, err)
	_, _, err = Generate(second, testOptions(req))
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerate_UTF16ManifestRoundTrips(t *testing.T) {
	dir := t.TempDir()
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("Django==4.2.7\r\ncafé-utils==0.3\r\n"))
	require.NoError(t, err)
	req := writeFile(t, dir, "bench_requirements.txt", raw)
	out := filepath.Join(dir, "installer.cfg")

	_, m, err := Generate(out, testOptions(req))
	require.NoError(t, err)
	assert.Equal(t, "utf-16le", m.Encoding)

	f, err := Read(out)
	require.NoError(t, err)
	require.NoError(t, Check(f))
	assert.Equal(t, "Django==4.2.7\ncafé-utils==0.3", f.Section("Include").Key("pypi_wheels").String())
	assert.Equal(t, "wheels/", f.Section("Include").Key("extra_wheel_sources").String())
}

func TestGenerate_EmptyManifestKeepsEveryKey(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, dir, "bench_requirements.txt", nil)
	opts := testOptions(req)
	opts.Application.EntryPoint = ""
	opts.Application.Console = true
	out := filepath.Join(dir, "installer.cfg")

	_, _, err := Generate(out, opts)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "entry_point = \n")
	assert.Contains(t, string(data), "console = true\n")
	assert.Contains(t, string(data), "pypi_wheels = \n")

	f, err := Read(out)
	require.NoError(t, err)
	assert.NoError(t, Check(f))
}

func TestGenerate_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Generate(filepath.Join(dir, "installer.cfg"), testOptions(filepath.Join(dir, "nope.txt")))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "installer.cfg"))
}

func TestBuild_SectionOrder(t *testing.T) {
	req := writeFile(t, t.TempDir(), "req.txt", []byte("x==1\n"))
	f, _, err := Build(testOptions(req))
	require.NoError(t, err)
	var names []string
	for _, sec := range f.Sections() {
		if sec.Name() != ini.DefaultSection {
			names = append(names, sec.Name())
		}
	}
	assert.Equal(t, []string{"Application", "Python", "Include"}, names)
}

func TestCheck_MissingKey(t *testing.T) {
	f, err := ini.Load([]byte("[Application]\nname = x\n"))
	require.NoError(t, err)
	err = Check(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Application.version")

	f, err = ini.Load([]byte("[Python]\nversion = 3.11\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, Check(f), "[Application]")
}

func TestGenerate_LargeManifestReadsBack(t *testing.T) {
	var lines []string
	for i := 0; i < 400; i++ {
		lines = append(lines, fmt.Sprintf("package-number-%03d", i))
	}
	manifestText := strings.Join(lines, "\n")
	require.Greater(t, len(manifestText), 6*1024)
	dir := t.TempDir()
	req := writeFile(t, dir, "bench_requirements.txt", []byte(manifestText+"\n"))
	out := filepath.Join(dir, "installer.cfg")

	built, _, err := Generate(out, testOptions(req))
	require.NoError(t, err)
	assert.Equal(t, manifestText, built.Section("Include").Key("pypi_wheels").String())

	f, err := Read(out)
	require.NoError(t, err)
	require.NoError(t, Check(f))
	assert.Equal(t, manifestText, f.Section("Include").Key("pypi_wheels").String())
	assert.Equal(t, []string{"pypi_wheels", "extra_wheel_sources"}, f.Section("Include").KeyStrings())
}

func TestParse_ConfigparserSyntax(t *testing.T) {
	src := "\ufeff# generated\n" +
		"[Application]\n" +
		"Name: Bench\n" +
		"version = 2.0\n" +
		"\n" +
		"[Include]\n" +
		"pypi_wheels = a==1\n" +
		"\tb==2\n" +
		"\n" +
		"\tc==3\n" +
		"; trailing comment\n" +
		"extra_wheel_sources =\n"

	f, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Bench", f.Section("Application").Key("name").String())
	assert.Equal(t, "2.0", f.Section("Application").Key("version").String())
	assert.Equal(t, "a==1\nb==2\n\nc==3", f.Section("Include").Key("pypi_wheels").String())
	assert.True(t, f.Section("Include").HasKey("extra_wheel_sources"))
	assert.Empty(t, f.Section("Include").Key("extra_wheel_sources").String())
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"key before section":  "name = x\n",
		"missing delimiter":   "[Application]\nname\n",
		"unterminated header": "[Application\nname = x\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}
