// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package workflow

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// userPathFile is a best-effort POSIX stand-in for the per-user registry
// PATH a Windows install would extend: Path/PermPathDirs is Windows-shaped
// by design, so this just records the intent to a file under the
// user's config dir rather than mutating a live shell's PATH, which no
// background process can do portably anyway.
func userPathFile() string { return filepath.Join(envAppData(), "nep", "user-path") }

func addToUserPath(dir string) error {
	lines, err := readPathLines()
	if err != nil {
		return err
	}
	for _, l := range lines {
		if l == dir {
			return nil
		}
	}
	lines = append(lines, dir)
	return writePathLines(lines)
}

func removeFromUserPath(dir string) error {
	lines, err := readPathLines()
	if err != nil {
		return err
	}
	kept := lines[:0]
	for _, l := range lines {
		if l != dir {
			kept = append(kept, l)
		}
	}
	return writePathLines(kept)
}

func readPathLines() ([]string, error) {
	f, err := os.Open(userPathFile())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, sc.Err()
}

func writePathLines(lines []string) error {
	path := userPathFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("path: %w", err)
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
