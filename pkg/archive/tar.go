// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package archive implements the tar + zstd codec that nep's outer and
// inner package archives are built from.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/nep-pkg/nep/pkg/reproducible"
)

// PackTar walks srcDir and writes a tar archive to outFile, rooted at "."
// rather than carrying srcDir's own name as a leading path component —
// unpacking the result into an empty directory reproduces srcDir's contents
// directly.
func PackTar(srcDir, outFile string) (err error) {
	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("archive: pack: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	tw := tar.NewWriter(out)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	var paths []string
	if walkErr := filepath.Walk(srcDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		paths = append(paths, path)
		return nil
	}); walkErr != nil {
		return fmt.Errorf("archive: pack: %w", walkErr)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := writeTarMember(tw, srcDir, path); err != nil {
			return fmt.Errorf("archive: pack: %w", err)
		}
	}
	return nil
}

func writeTarMember(tw *tar.Writer, srcDir, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(srcDir, path)
	if err != nil {
		return err
	}
	name := filepath.ToSlash(rel)

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(path)
		if err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}

	// Clamp timestamps so packing the same tree twice yields bit-identical
	// archives (and so SOURCE_DATE_EPOCH pins them entirely).
	clampTime := reproducible.Now()
	if hdr.ModTime.After(clampTime) {
		hdr.ModTime = clampTime
	}
	if hdr.AccessTime.After(clampTime) {
		hdr.AccessTime = clampTime
	}
	if hdr.ChangeTime.After(clampTime) {
		hdr.ChangeTime = clampTime
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// ReleaseTar destructively extracts srcFile into dstDir: any existing dstDir
// is recursively removed first, then recreated, then the archive is
// unpacked into it, so extraction always starts from a clean target.
func ReleaseTar(srcFile, dstDir string) (err error) {
	if err := os.RemoveAll(dstDir); err != nil {
		return fmt.Errorf("archive: release: %w", err)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("archive: release: %w", err)
	}

	in, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("archive: release: %w", err)
	}
	defer in.Close()

	tr := tar.NewReader(in)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("archive: release: %w", err)
		}
		if err := extractTarMember(tr, dstDir, hdr); err != nil {
			return fmt.Errorf("archive: release: %w", err)
		}
	}
	return nil
}

func extractTarMember(tr *tar.Reader, dstDir string, hdr *tar.Header) error {
	target := filepath.Join(dstDir, filepath.FromSlash(hdr.Name))
	if !isWithinDir(dstDir, target) {
		return fmt.Errorf("tar member escapes destination: %s", hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o700)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, hdr.FileInfo().Mode().Perm())
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(f, tr) //nolint:gosec // size is bounded by the archive's own declared header
		return err
	default:
		return nil
	}
}

func isWithinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasPrefix(rel, ".."+string(filepath.Separator))
}

func filepathHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
