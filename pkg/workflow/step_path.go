// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// PathStep adds a payload path (a directory, or a "bin/" file entrance) to
// the user PATH. `record` is payload-relative: a trailing "/" (or a
// path that resolves to a directory) adds the directory itself to PATH; a
// file entrance instead gets a `.cmd` shim written into BinDir that execs
// the recorded absolute path, forwarding all arguments.
type PathStep struct {
	Record string `json:"record"`

	// BinDir and Scope are not TOML fields; they're filled in by the
	// orchestrator before Run/ReverseRun (the step itself only knows its
	// payload-relative record, not where the installed database's shared
	// bin/ directory lives or which scope/alias names the shim).
	BinDir string `json:"-"`
	Scope  string `json:"-"`
}

func decodePathStep(params map[string]interface{}) (*PathStep, error) {
	var s PathStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *PathStep) alias() string {
	base := filepath.Base(s.Record)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *PathStep) isFileEntrance(located string) bool {
	if strings.HasSuffix(s.Record, "/") {
		return false
	}
	info, err := os.Stat(filepath.Join(located, filepath.FromSlash(s.Record)))
	return err == nil && !info.IsDir()
}

func (s *PathStep) shimPaths() []string {
	if s.BinDir == "" {
		return nil
	}
	alias := s.alias()
	paths := []string{filepath.Join(s.BinDir, alias+".cmd")}
	if s.Scope != "" {
		paths = append(paths, filepath.Join(s.BinDir, s.Scope+"-"+alias+".cmd"))
	}
	return paths
}

func (s *PathStep) Run(ctx context.Context, wctx Context) (int, error) {
	target := filepath.Join(wctx.Located, filepath.FromSlash(s.Record))
	if s.isFileEntrance(wctx.Located) {
		shim := shimScript(target)
		for _, p := range s.shimPaths() {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return 1, fmt.Errorf("workflow: Path: %w", err)
			}
			if err := os.WriteFile(p, []byte(shim), 0o755); err != nil {
				return 1, fmt.Errorf("workflow: Path: %w", err)
			}
			dlog.Infof(ctx, "path: wrote shim %q -> %q", p, target)
		}
		return 0, nil
	}
	dlog.Infof(ctx, "path: adding directory %q to PATH", target)
	return 0, addToUserPath(target)
}

func (s *PathStep) ReverseRun(ctx context.Context, wctx Context) error {
	target := filepath.Join(wctx.Located, filepath.FromSlash(s.Record))
	if s.isFileEntrance(wctx.Located) {
		for _, p := range s.shimPaths() {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				dlog.Warnf(ctx, "path: reverse: removing shim %q: %v", p, err)
			}
		}
		return nil
	}
	if err := removeFromUserPath(target); err != nil {
		dlog.Warnf(ctx, "path: reverse: %v", err)
	}
	return nil
}

func (s *PathStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	fs.Add(s.Record, "")
	return nil
}

func (s *PathStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error {
	return checkManifestPath(ctx, fs, s.Record)
}

func (s *PathStep) Interpret(wctx Context) Step {
	out := *s
	out.Record = Interpret(wctx, s.Record)
	return &out
}

func (s *PathStep) VerifySelf() error {
	if s.Record == "" {
		return fmt.Errorf("workflow: Path: record is required")
	}
	return ValidatePath(s.Record)
}

func (s *PathStep) GeneralizePermissions() ([]Permission, error) {
	if strings.HasSuffix(s.Record, "/") {
		return []Permission{{Key: PermPathDirs, Level: Normal, Targets: []string{s.Record}}}, nil
	}
	return []Permission{{Key: PermPathEntrances, Level: Normal, Targets: []string{s.Record}}}, nil
}

func shimScript(target string) string {
	return fmt.Sprintf("@echo off\r\n%q %%*\r\n", target)
}
