// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package workflow

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// addToUserPath appends dir to HKCU\Environment\PATH, the per-user PATH
// Windows installers are expected to extend rather than touching the
// machine-wide PATH.
func addToUserPath(dir string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, `Environment`, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("path: %w", err)
	}
	defer k.Close()

	current, _, _ := k.GetStringValue("Path")
	for _, part := range strings.Split(current, ";") {
		if strings.EqualFold(part, dir) {
			return nil
		}
	}
	updated := current
	if updated != "" && !strings.HasSuffix(updated, ";") {
		updated += ";"
	}
	updated += dir
	return k.SetExpandStringValue("Path", updated)
}

func removeFromUserPath(dir string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, `Environment`, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("path: %w", err)
	}
	defer k.Close()

	current, _, _ := k.GetStringValue("Path")
	parts := strings.Split(current, ";")
	kept := parts[:0]
	for _, part := range parts {
		if !strings.EqualFold(part, dir) {
			kept = append(kept, part)
		}
	}
	return k.SetExpandStringValue("Path", strings.Join(kept, ";"))
}
