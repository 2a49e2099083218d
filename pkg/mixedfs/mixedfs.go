// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package mixedfs implements the virtual filesystem overlay that a
// workflow's steps declare their effects into during verification: each
// step's get_manifest contract adds or removes paths without touching the
// real disk, so manifest_validator can check that every path a later step
// references will actually exist once the workflow has run.
package mixedfs

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/datawire/dlib/dlog"
)

// FS is a virtual overlay bound to one payload root ("located"). It tracks
// four sets — exact adds, exact removes, glob adds, glob removes — and
// answers Exists by consulting them before falling back to the real disk.
type FS struct {
	located string

	toAdd     map[string]struct{}
	toRemove  map[string]struct{}
	toAddWild map[string]struct{}
	toRemWild map[string]struct{}

	// VarWarnManifest is set the first time a producer step declares a file
	// addition; manifest_validator treats a missing manifest path as a
	// warning rather than an error once this is true.
	VarWarnManifest bool
}

// New returns an FS overlaying located, the absolute path of the payload
// root this workflow execution is scoped to.
func New(ctx context.Context, located string) *FS {
	dlog.Debugf(ctx, "mixedfs: instance created with located %q", located)
	return &FS{
		located:   located,
		toAdd:     make(map[string]struct{}),
		toRemove:  make(map[string]struct{}),
		toAddWild: make(map[string]struct{}),
		toRemWild: make(map[string]struct{}),
	}
}

func (fs *FS) addExact(p string) {
	delete(fs.toRemove, p)
	fs.toAdd[p] = struct{}{}
}

// removeExact cancels a pending add for p rather than recording a removal
// on top of it: a path that was only ever virtually added falls back to
// the disk truth once it's removed again.
func (fs *FS) removeExact(p string) {
	if _, ok := fs.toAdd[p]; ok {
		delete(fs.toAdd, p)
		return
	}
	fs.toRemove[p] = struct{}{}
}

func (fs *FS) addWild(p string) {
	delete(fs.toRemWild, p)
	fs.toAddWild[p] = struct{}{}
}

func (fs *FS) removeWild(p string) {
	if _, ok := fs.toAddWild[p]; ok {
		delete(fs.toAddWild, p)
		return
	}
	fs.toRemWild[p] = struct{}{}
}

// Add declares that path will exist once the workflow has finished running.
// from is the step's source argument, or empty when the path is produced
// from nothing (New, Download).
func (fs *FS) Add(p, from string) {
	if hasWildcard(p) {
		panic("mixedfs: Add: path must not itself contain a wildcard: " + p)
	}
	if isVariablePrefixed(p) {
		return
	}

	fs.VarWarnManifest = true

	if from == "" {
		if strings.HasSuffix(p, "/") {
			fs.addWild(p + "*")
		} else {
			fs.addExact(p)
		}
		return
	}

	p = formatPath(p)
	from = formatPath(from)

	if !isVariablePrefixed(from) {
		if hasWildcard(from) {
			for _, exactPath := range fs.expandWildcard(from) {
				merged := mergePath(exactPath, p)
				if isDir(exactPath) {
					fs.addWild(merged + "/*")
				} else {
					fs.addExact(merged)
				}
			}
		} else {
			fs.addExact(p)
		}
		return
	}

	// from names a variable-rooted path outside the payload: we can't
	// inspect the real disk to tell file from directory.
	if strings.HasSuffix(p, "/") || strings.HasSuffix(from, "/") {
		if strings.HasSuffix(p, "/") {
			fs.addWild(p + "*")
		} else {
			fs.addWild(p + "/*")
		}
		return
	}

	// Tolerant over-approximation: record both forms when the source gives
	// no hint whether the result is a file or a directory.
	fs.addWild(p + "/*")
	fs.addExact(p)
}

// Remove declares that path will no longer exist. Wildcards in path are
// expanded against the real disk under located.
func (fs *FS) Remove(ctx context.Context, p string) {
	if isVariablePrefixed(p) {
		return
	}
	p = formatPath(p)

	if hasWildcard(p) {
		for _, exactPath := range fs.expandWildcard(p) {
			rel := strings.TrimPrefix(filepath.ToSlash(exactPath), formatPath(fs.located))
			rel = strings.TrimPrefix(rel, "/")
			fs.removeExact(rel)
		}
		return
	}

	if !fs.Exists(p) {
		dlog.Warnf(ctx, "mixedfs: trying to remove a non-existent target: %q", p)
		return
	}

	if strings.HasSuffix(p, "/") || isDir(filepath.Join(fs.located, filepath.FromSlash(p))) {
		if strings.HasSuffix(p, "/") {
			fs.removeWild(p + "*")
		} else {
			fs.removeWild(p + "/*")
		}
		return
	}
	fs.removeExact(p)
}

// Exists reports whether path will exist once the workflow has run,
// consulting (in order) the variable-prefix shortcut, the add set, the add
// glob set, the remove set, the remove glob set, and finally the real disk
// under located.
func (fs *FS) Exists(p string) bool {
	if isVariablePrefixed(p) {
		return true
	}
	p = formatPath(p)

	if _, ok := fs.toAdd[p]; ok {
		return true
	}
	if matchesAny(p, fs.toAddWild) {
		return true
	}
	if _, ok := fs.toRemove[p]; ok {
		return false
	}
	if matchesAny(p, fs.toRemWild) {
		return false
	}

	_, err := statFollow(filepath.Join(fs.located, filepath.FromSlash(p)))
	return err == nil
}

// AddedPaths returns every exact (non-wildcard) path the overlay has
// recorded as added, in no particular order. Uninstall's kill-then-retry
// step needs to scan a workflow's whole declared manifest for
// ".exe" names; nothing else in the package needs to enumerate the overlay,
// so this stays narrow rather than exposing the internal sets directly.
func (fs *FS) AddedPaths() []string {
	out := make([]string, 0, len(fs.toAdd))
	for p := range fs.toAdd {
		out = append(out, p)
	}
	return out
}

func mergePath(exactFrom, to string) string {
	return to + path.Base(filepath.ToSlash(exactFrom))
}

func isVariablePrefixed(p string) bool {
	return strings.HasPrefix(p, "${")
}

// formatPath normalizes a possibly "./"-prefixed, possibly Windows-ish
// path into the forward-slash form the overlay's sets are keyed on.
func formatPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	return p
}

func hasWildcard(p string) bool {
	return strings.ContainsAny(p, "*?")
}
