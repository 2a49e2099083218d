// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package mixedfs

import (
	"os"
	"path/filepath"
)

// expandWildcard expands a `*`/`?` pattern against the real disk under
// located, returning matches as absolute paths. The pattern is relative to
// located (payload-relative or "./"-prefixed); wildcards only ever appear
// in a path's last segment, so filepath.Glob's
// single-segment wildcard semantics are sufficient.
func (fs *FS) expandWildcard(pattern string) []string {
	abs := filepath.Join(fs.located, filepath.FromSlash(pattern))
	matches, err := filepath.Glob(abs)
	if err != nil {
		return nil
	}
	return matches
}

// matchesAny reports whether path matches any glob pattern in set.
func matchesAny(p string, set map[string]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	for pattern := range set {
		if ok, _ := filepath.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func statFollow(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
