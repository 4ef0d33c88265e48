// Package release bundles the distribution directory into a single
// zstd-compressed tarball and produces its checksum and signature.
package release

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/valyala/gozstd"

	"release-tools/go/pkg/logbowl"
)

const (
	ArchiveExt   = ".tar.zst"
	ChecksumExt  = ".sha256"
	SignatureExt = ".sig"
)

// ArchiveName returns "<slug>-<version>.tar.zst" for an application.
func ArchiveName(app, version string) string {
	return Slug(app) + "-" + version + ArchiveExt
}

// Slug lowercases name and collapses every run of other characters into "-".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Pack writes the contents of sourceDir into a zstd-compressed tar at
// archivePath. Paths matching any exclude glob are left out, as is the
// archive itself and its sidecar files. It returns the archived file names.
func Pack(log logbowl.Logger, archivePath, sourceDir string, excludePatterns []string) ([]string, error) {
	for _, pattern := range excludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	absArchive, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, err
	}
	self := map[string]bool{
		absArchive:                true,
		absArchive + ChecksumExt:  true,
		absArchive + SignatureExt: true,
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	zw := gozstd.NewWriter(out)
	tw := tar.NewWriter(zw)

	var files []string
	walkErr := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if abs, _ := filepath.Abs(path); self[abs] {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		for _, pattern := range excludePatterns {
			if doublestar.MatchUnvalidated(pattern, relPath) {
				log.Debug("archive", "exclude", "skip", "Excluding path based on pattern", "path", relPath, "pattern", pattern)
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = relPath
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, relPath)
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})

	closeErr := errors.Join(tw.Close(), zw.Close(), out.Close())
	zw.Release()
	if err := errors.Join(walkErr, closeErr); err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("pack %s: %w", sourceDir, err)
	}
	return files, nil
}

// Unpack extracts a Pack archive into dest and returns the extracted file
// names.
func Unpack(archivePath, dest string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr := gozstd.NewReader(f)
	defer zr.Release()
	tr := tar.NewReader(zr)

	cleanDest := filepath.Clean(dest)
	var files []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		target := filepath.Join(dest, header.Name)
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return nil, fmt.Errorf("entry %q escapes the extraction dir", header.Name)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			files = append(files, header.Name)
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode).Perm())
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return nil, err
			}
			if err := out.Close(); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}
