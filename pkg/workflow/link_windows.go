// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/datawire/dlib/dexec"
)

func shortcutExt() string { return ".lnk" }

// createShortcut writes a Windows .lnk file pointing target (optionally
// with args) via the WScript.Shell COM object, the same mechanism common
// Windows package managers (Chocolatey, among others) use instead of
// hand-rolling the .lnk binary format.
func createShortcut(ctx context.Context, dst, target, args string) error {
	if err := os.MkdirAll(parentDir(dst), 0o755); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	script := fmt.Sprintf(
		`$s=(New-Object -COM WScript.Shell).CreateShortcut('%s');$s.TargetPath='%s';$s.Arguments='%s';$s.Save()`,
		psEscape(dst), psEscape(target), psEscape(args),
	)
	cmd := dexec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

func removeShortcut(dst string) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("link: remove: %w", err)
	}
	return nil
}

func psEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func parentDir(p string) string {
	i := strings.LastIndexAny(p, `/\`)
	if i < 0 {
		return "."
	}
	return p[:i]
}
