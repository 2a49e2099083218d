// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package workflow

import (
	"os"
	"path/filepath"
)

// On non-Windows hosts there's no drive letter or Program Files tree; these
// resolve to the closest POSIX analogue so a workflow authored against the
// Windows-era variable set still has somewhere sane to land.
func envSystemDrive() string { return "/" }

func envAppData() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return envHome() + "/.config"
	}
	return dir
}

func envHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/root"
	}
	return home
}

func envProgramFilesX64() string { return "/usr/local" }
func envProgramFilesX86() string { return "/usr/local" }

func envDesktop() string { return filepath.Join(envHome(), "Desktop") }

// envStartMenu has no real POSIX analogue; Link/startmenu is Windows-
// specific by design, so this just gives it somewhere
// deterministic to land under ~/.config rather than failing outright.
func envStartMenu() string { return filepath.Join(envAppData(), "StartMenu", "Programs") }
