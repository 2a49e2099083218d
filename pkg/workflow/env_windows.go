// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package workflow

import (
	"os"
	"path/filepath"
)

func envSystemDrive() string {
	home, err := os.UserHomeDir()
	if err != nil || len(home) < 2 {
		return "C:"
	}
	return home[:2]
}

func envAppData() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return envSystemDrive() + `\Users\Default\AppData`
	}
	return dir
}

func envHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return envSystemDrive() + `\Users\Default`
	}
	return home
}

func envProgramFilesX64() string { return envSystemDrive() + `\Program Files` }
func envProgramFilesX86() string { return envSystemDrive() + `\Program Files (x86)` }

func envDesktop() string { return filepath.Join(envHome(), "Desktop") }

func envStartMenu() string {
	return filepath.Join(envAppData(), `Microsoft\Windows\Start Menu\Programs`)
}
