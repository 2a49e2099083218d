// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

func hasWildcardSeg(p string) bool { return strings.ContainsAny(p, "*?") }

// validateWildcardPair enforces the wildcard grammar: a wildcard may only
// appear in the last path segment of a source-side argument; destination
// paths never carry wildcards; and when the source has a wildcard, the
// destination must name a directory (trailing "/").
func validateWildcardPair(from, to string) error {
	if hasWildcardSeg(to) {
		return fmt.Errorf("destination %q must not contain a wildcard", to)
	}
	if dir := filepath.ToSlash(filepath.Dir(from)); hasWildcardSeg(dir) {
		return fmt.Errorf("source %q: wildcard may only appear in the last path segment", from)
	}
	if hasWildcardSeg(from) && !strings.HasSuffix(to, "/") {
		return fmt.Errorf("source %q has a wildcard; destination %q must end with '/'", from, to)
	}
	return nil
}

// --- Copy ---

// CopyStep copies a file or directory, supporting wildcards in `from`.
type CopyStep struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

func decodeCopyStep(params map[string]interface{}) (*CopyStep, error) {
	var s CopyStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *CopyStep) Run(ctx context.Context, wctx Context) (int, error) {
	if err := fsCopyOrMove(ctx, wctx.Located, s.From, s.To, s.Overwrite, false); err != nil {
		return 1, fmt.Errorf("workflow: Copy: %w", err)
	}
	return 0, nil
}

func (s *CopyStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *CopyStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	fs.Add(s.To, s.From)
	return nil
}

func (s *CopyStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error {
	return checkManifestPath(ctx, fs, s.From)
}

func (s *CopyStep) Interpret(wctx Context) Step {
	out := *s
	out.From, out.To = Interpret(wctx, s.From), Interpret(wctx, s.To)
	return &out
}

func (s *CopyStep) VerifySelf() error {
	if s.From == "" || s.To == "" {
		return fmt.Errorf("workflow: Copy: from and to are required")
	}
	if err := ValidatePath(s.From); err != nil {
		return err
	}
	if err := ValidatePath(s.To); err != nil {
		return err
	}
	return validateWildcardPair(s.From, s.To)
}

func (s *CopyStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{
		{Key: PermFSRead, Level: PermissionLevelForPath(s.From), Targets: []string{s.From}},
		{Key: PermFSWrite, Level: PermissionLevelForPath(s.To), Targets: []string{s.To}},
	}, nil
}

// --- Move ---

// MoveStep moves/renames a file or directory, supporting wildcards in
// `from`.
type MoveStep struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

func decodeMoveStep(params map[string]interface{}) (*MoveStep, error) {
	var s MoveStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *MoveStep) Run(ctx context.Context, wctx Context) (int, error) {
	if err := fsCopyOrMove(ctx, wctx.Located, s.From, s.To, s.Overwrite, true); err != nil {
		return 1, fmt.Errorf("workflow: Move: %w", err)
	}
	return 0, nil
}

func (s *MoveStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *MoveStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	fs.Remove(ctx, s.From)
	fs.Add(s.To, s.From)
	return nil
}

func (s *MoveStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error {
	return checkManifestPath(ctx, fs, s.From)
}

func (s *MoveStep) Interpret(wctx Context) Step {
	out := *s
	out.From, out.To = Interpret(wctx, s.From), Interpret(wctx, s.To)
	return &out
}

func (s *MoveStep) VerifySelf() error {
	if s.From == "" || s.To == "" {
		return fmt.Errorf("workflow: Move: from and to are required")
	}
	if err := ValidatePath(s.From); err != nil {
		return err
	}
	if err := ValidatePath(s.To); err != nil {
		return err
	}
	return validateWildcardPair(s.From, s.To)
}

func (s *MoveStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{
		{Key: PermFSWrite, Level: PermissionLevelForPath(s.From), Targets: []string{s.From}},
		{Key: PermFSWrite, Level: PermissionLevelForPath(s.To), Targets: []string{s.To}},
	}, nil
}

// --- Rename ---

// RenameStep renames a payload entry within its own parent directory; `to`
// is a bare name with no path separators.
type RenameStep struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func decodeRenameStep(params map[string]interface{}) (*RenameStep, error) {
	var s RenameStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *RenameStep) Run(ctx context.Context, wctx Context) (int, error) {
	from := filepath.Join(wctx.Located, filepath.FromSlash(s.From))
	to := filepath.Join(filepath.Dir(from), s.To)
	if err := os.RemoveAll(to); err != nil {
		return 1, fmt.Errorf("workflow: Rename: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return 1, fmt.Errorf("workflow: Rename: %w", err)
	}
	dlog.Infof(ctx, "rename: %q -> %q", from, to)
	return 0, nil
}

func (s *RenameStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *RenameStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	fs.Remove(ctx, s.From)
	to := filepath.ToSlash(filepath.Join(filepath.Dir(s.From), s.To))
	fs.Add(to, s.From)
	return nil
}

func (s *RenameStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error {
	return checkManifestPath(ctx, fs, s.From)
}

func (s *RenameStep) Interpret(wctx Context) Step {
	out := *s
	out.From, out.To = Interpret(wctx, s.From), Interpret(wctx, s.To)
	return &out
}

func (s *RenameStep) VerifySelf() error {
	if s.From == "" || s.To == "" {
		return fmt.Errorf("workflow: Rename: from and to are required")
	}
	if err := ValidatePath(s.From); err != nil {
		return err
	}
	if strings.ContainsAny(s.To, `/\*:$`) {
		return fmt.Errorf("workflow: Rename: to must be a bare name, got %q", s.To)
	}
	return nil
}

func (s *RenameStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{{Key: PermFSWrite, Level: PermissionLevelForPath(s.From), Targets: []string{s.From}}}, nil
}

// --- New ---

// NewStep creates an empty file, or an empty directory when `at` ends with
// "/".
type NewStep struct {
	At        string `json:"at"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

func decodeNewStep(params map[string]interface{}) (*NewStep, error) {
	var s NewStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *NewStep) Run(ctx context.Context, wctx Context) (int, error) {
	target := filepath.Join(wctx.Located, filepath.FromSlash(s.At))
	if strings.HasSuffix(s.At, "/") {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return 1, fmt.Errorf("workflow: New: %w", err)
		}
		return 0, nil
	}
	if _, err := os.Stat(target); err == nil {
		if !s.Overwrite {
			return 1, fmt.Errorf("workflow: New: %q already exists", s.At)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 1, fmt.Errorf("workflow: New: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 1, fmt.Errorf("workflow: New: %w", err)
	}
	return 0, f.Close()
}

func (s *NewStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *NewStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	fs.Add(s.At, "")
	return nil
}

func (s *NewStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *NewStep) Interpret(wctx Context) Step {
	out := *s
	out.At = Interpret(wctx, s.At)
	return &out
}

func (s *NewStep) VerifySelf() error {
	if s.At == "" {
		return fmt.Errorf("workflow: New: at is required")
	}
	return ValidatePath(s.At)
}

func (s *NewStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{{Key: PermFSWrite, Level: PermissionLevelForPath(s.At), Targets: []string{s.At}}}, nil
}

// --- Delete ---

// DeleteStep deletes a file or directory, supporting wildcards.
// Tries a plain remove first (see recycleOrDelete; nothing goes to a
// recycle bin); if that fails and Force is set, removes recursively.
type DeleteStep struct {
	At    string `json:"at"`
	Force bool   `json:"force,omitempty"`
}

func decodeDeleteStep(params map[string]interface{}) (*DeleteStep, error) {
	var s DeleteStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *DeleteStep) Run(ctx context.Context, wctx Context) (int, error) {
	targets, err := expandPayloadPattern(wctx.Located, s.At)
	if err != nil {
		return 1, fmt.Errorf("workflow: Delete: %w", err)
	}
	for _, target := range targets {
		if err := recycleOrDelete(ctx, target, s.Force); err != nil {
			return 1, fmt.Errorf("workflow: Delete: %w", err)
		}
	}
	return 0, nil
}

func (s *DeleteStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *DeleteStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	fs.Remove(ctx, s.At)
	return nil
}

func (s *DeleteStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error {
	return checkManifestPath(ctx, fs, s.At)
}

func (s *DeleteStep) Interpret(wctx Context) Step {
	out := *s
	out.At = Interpret(wctx, s.At)
	return &out
}

func (s *DeleteStep) VerifySelf() error {
	if s.At == "" {
		return fmt.Errorf("workflow: Delete: at is required")
	}
	return ValidatePath(s.At)
}

func (s *DeleteStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{{Key: PermFSWrite, Level: PermissionLevelForPath(s.At), Targets: []string{s.At}}}, nil
}

// --- shared fs helpers ---

func expandPayloadPattern(located, pattern string) ([]string, error) {
	abs := filepath.Join(located, filepath.FromSlash(pattern))
	if !hasWildcardSeg(pattern) {
		return []string{abs}, nil
	}
	matches, err := filepath.Glob(abs)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func fsCopyOrMove(ctx context.Context, located, from, to string, overwrite, move bool) error {
	srcs, err := expandPayloadPattern(located, from)
	if err != nil {
		return err
	}
	destIsDir := strings.HasSuffix(to, "/") || hasWildcardSeg(from)
	for _, src := range srcs {
		dst := filepath.Join(located, filepath.FromSlash(to))
		if destIsDir {
			dst = filepath.Join(dst, filepath.Base(src))
		}
		if err := copyOrMoveOne(ctx, src, dst, overwrite, move); err != nil {
			return err
		}
	}
	return nil
}

func copyOrMoveOne(ctx context.Context, src, dst string, overwrite, move bool) error {
	if _, err := os.Stat(dst); err == nil && !overwrite {
		return fmt.Errorf("%q already exists (overwrite not set)", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if move {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		dlog.Debugf(ctx, "move: %q -> %q", src, dst)
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
		// cross-device move: fall through to copy+delete
		if err := copyTree(src, dst); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}
	dlog.Debugf(ctx, "copy: %q -> %q", src, dst)
	return copyTree(src, dst)
}

func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info)
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, info os.FileInfo) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// recycleOrDelete stands in for the host recycle-bin helper, which lives
// outside this module: a direct remove, then a force-remove if the
// first attempt fails and force is set.
func recycleOrDelete(ctx context.Context, target string, force bool) error {
	err := os.Remove(target)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if !force {
		return err
	}
	dlog.Debugf(ctx, "delete: force-removing %q after plain remove failed: %v", target, err)
	return os.RemoveAll(target)
}
