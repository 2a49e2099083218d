// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package workflow implements the step taxonomy that a nep workflow TOML
// file (setup.toml, update.toml, remove.toml, expand.toml) is made of:
// each step variant's forward effect, its best-effort reverse, the virtual
// filesystem changes it declares, and the abstract permissions it needs.
package workflow

import "fmt"

// PermissionLevel ranks how much trust a step's declared permission
// requires, from the installer's perspective.
type PermissionLevel int

const (
	Normal PermissionLevel = iota
	Important
	Sensitive
)

func (l PermissionLevel) String() string {
	switch l {
	case Normal:
		return "normal"
	case Important:
		return "important"
	case Sensitive:
		return "sensitive"
	default:
		return fmt.Sprintf("PermissionLevel(%d)", int(l))
	}
}

// Permission keys, one per distinct capability a step or condition
// function can declare. These match the wire format's permission
// catalog so a meta report produced by nep reads the same way.
const (
	PermLinkDesktop      = "link_desktop"
	PermLinkStartMenu    = "link_startmenu"
	PermExecuteInstaller = "execute_installer"
	PermExecuteCustom    = "execute_custom"
	PermPathEntrances    = "path_entrances"
	PermPathDirs         = "path_dirs"
	PermFSRead           = "fs_read"
	PermFSWrite          = "fs_write"
	PermDownloadFile     = "download_file"
	PermProcessKill      = "process_kill"
	PermProcessQuery     = "process_query"
	PermNotifyToast      = "notify_toast"
	PermNepInstalled     = "nep_installed"
)

// Permission is a single declared capability requirement: a key, the
// trust level it was judged at, and the concrete targets (paths, process
// names, package ids) it applies to.
type Permission struct {
	Key     string
	Level   PermissionLevel
	Targets []string
}

// Generalizable is implemented by anything that can declare the abstract
// permissions it needs without actually exercising them — steps, and the
// conditional-expression evaluator's captured function calls.
type Generalizable interface {
	GeneralizePermissions() ([]Permission, error)
}

// MergePermissions groups a flat permission list by (level, key), unioning
// targets — the shape a meta report presents to a user deciding whether to
// trust a package.
func MergePermissions(perms []Permission) []Permission {
	type groupKey struct {
		level PermissionLevel
		key   string
	}
	order := make([]groupKey, 0, len(perms))
	groups := make(map[groupKey][]string)
	for _, p := range perms {
		gk := groupKey{level: p.Level, key: p.Key}
		if _, ok := groups[gk]; !ok {
			order = append(order, gk)
		}
		groups[gk] = append(groups[gk], p.Targets...)
	}

	merged := make([]Permission, 0, len(order))
	for _, gk := range order {
		merged = append(merged, Permission{Key: gk.key, Level: gk.level, Targets: dedupStrings(groups[gk])})
	}
	return merged
}

func dedupStrings(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
