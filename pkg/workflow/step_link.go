// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// LinkStep creates a shortcut pointing at a payload-relative executable,
// on the desktop and/or in the start menu.
type LinkStep struct {
	SourceFile string `json:"source_file"`
	Alias      string `json:"alias,omitempty"`
	Target     string `json:"target,omitempty"` // "desktop" | "startmenu" | "" (both)
	Args       string `json:"args,omitempty"`
}

func decodeLinkStep(params map[string]interface{}) (*LinkStep, error) {
	var s LinkStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *LinkStep) displayName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return strings.TrimSuffix(filepath.Base(s.SourceFile), filepath.Ext(s.SourceFile))
}

func (s *LinkStep) targets() []string {
	switch s.Target {
	case "desktop":
		return []string{"desktop"}
	case "startmenu":
		return []string{"startmenu"}
	case "":
		return []string{"desktop", "startmenu"}
	default:
		return nil
	}
}

func (s *LinkStep) shortcutPath(target string) string {
	name := s.displayName() + shortcutExt()
	switch target {
	case "desktop":
		return filepath.Join(envDesktop(), name)
	case "startmenu":
		return filepath.Join(envStartMenu(), name)
	default:
		return ""
	}
}

func (s *LinkStep) Run(ctx context.Context, wctx Context) (int, error) {
	source := filepath.Join(wctx.Located, filepath.FromSlash(s.SourceFile))
	for _, target := range s.targets() {
		dst := s.shortcutPath(target)
		dlog.Infof(ctx, "link: creating %s shortcut %q -> %q", target, dst, source)
		if err := createShortcut(ctx, dst, source, s.Args); err != nil {
			return 1, fmt.Errorf("workflow: Link: %w", err)
		}
	}
	return 0, nil
}

func (s *LinkStep) ReverseRun(ctx context.Context, wctx Context) error {
	for _, target := range s.targets() {
		dst := s.shortcutPath(target)
		dlog.Debugf(ctx, "link: removing %s shortcut %q", target, dst)
		if err := removeShortcut(dst); err != nil {
			dlog.Warnf(ctx, "link: reverse: %v", err)
		}
	}
	return nil
}

func (s *LinkStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	return nil // shortcuts live outside the payload root; nothing for the manifest to track
}

func (s *LinkStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error {
	return checkManifestPath(ctx, fs, s.SourceFile)
}

func (s *LinkStep) Interpret(wctx Context) Step {
	out := *s
	out.SourceFile = Interpret(wctx, s.SourceFile)
	out.Args = Interpret(wctx, s.Args)
	return &out
}

func (s *LinkStep) VerifySelf() error {
	if s.SourceFile == "" {
		return fmt.Errorf("workflow: Link: source_file is required")
	}
	if err := ValidatePath(s.SourceFile); err != nil {
		return fmt.Errorf("workflow: Link: %w", err)
	}
	switch s.Target {
	case "", "desktop", "startmenu":
	default:
		return fmt.Errorf("workflow: Link: target must be 'desktop' or 'startmenu', got %q", s.Target)
	}
	return nil
}

func (s *LinkStep) GeneralizePermissions() ([]Permission, error) {
	var perms []Permission
	for _, target := range s.targets() {
		if target == "desktop" {
			perms = append(perms, Permission{Key: PermLinkDesktop, Level: Important, Targets: []string{s.SourceFile}})
		} else {
			perms = append(perms, Permission{Key: PermLinkStartMenu, Level: Important, Targets: []string{s.SourceFile}})
		}
	}
	return perms, nil
}
