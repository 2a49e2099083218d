// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Context is the execution context a workflow runs under: {located, pkg,
// exit_code}. located is the absolute path of the payload root
// for this execution; Pkg identifies the package being acted on
// ("scope/name"; no step or condition function reads it); ExitCode is the previous step's exit
// code, consulted by c_if and by ${ExitCode} interpolation.
type Context struct {
	Located  string
	Pkg      string
	ExitCode int
}

// builtinVar is one recognized ${Name} variable and how to resolve it
// against a Context.
type builtinVar struct {
	name    string
	level   PermissionLevel
	resolve func(ctx Context) string
}

// builtinVars is the fixed variable table. Order
// doesn't matter for lookup, but is kept stable for deterministic
// iteration (e.g. when validating an unknown ${...} prefix).
var builtinVars = []builtinVar{
	{"${ExitCode}", Normal, func(ctx Context) string { return strconv.Itoa(ctx.ExitCode) }},
	{"${DefaultLocation}", Normal, func(ctx Context) string { return ctx.Located }},
	{"${SystemDrive}", Sensitive, func(ctx Context) string { return envSystemDrive() }},
	{"${Home}", Important, func(ctx Context) string { return envHome() }},
	{"${AppData}", Sensitive, func(ctx Context) string { return envAppData() }},
	{"${ProgramFiles_X64}", Sensitive, func(ctx Context) string { return envProgramFilesX64() }},
	{"${ProgramFiles_X86}", Sensitive, func(ctx Context) string { return envProgramFilesX86() }},
	{"${Desktop}", Important, func(ctx Context) string { return envDesktop() }},
	{"${Arch}", Normal, func(ctx Context) string { return archString() }},
}

// archString maps runtime.GOARCH to the historical x86/x64 spelling real
// setup.toml files condition on, since neither
// "amd64" nor "386" appear in packages authored against that convention.
func archString() string {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return "x64"
	case "386", "arm":
		return "x86"
	default:
		return runtime.GOARCH
	}
}

// Interpret substitutes every recognized ${...} reference in raw with its
// resolved value under ctx. Unrecognized ${...} references are left
// untouched; values_validator_path (ValidatePath) is what actually rejects
// them, at verification time rather than at substitution time.
func Interpret(ctx Context, raw string) string {
	out := raw
	for _, v := range builtinVars {
		out = strings.ReplaceAll(out, v.name, v.resolve(ctx))
	}
	return out
}

// PermissionLevelForPath judges the trust level implied by referencing
// path, based on which built-in variable (if any) it's rooted under.
// Payload-relative paths and ${DefaultLocation} are Normal.
func PermissionLevelForPath(path string) PermissionLevel {
	for _, v := range builtinVars {
		if v.name == "${ExitCode}" || v.name == "${DefaultLocation}" {
			continue
		}
		if strings.HasPrefix(path, v.name) {
			return v.level
		}
	}
	return Normal
}

// ValidatePath checks a source/destination path argument per
// values_validator_path: a "${"-prefixed path must name one of the known
// built-in variables, and an absolute (non-variable) path is always
// rejected — workflow paths are either payload-relative or rooted at a
// recognized variable.
func ValidatePath(path string) error {
	if strings.HasPrefix(path, "${") {
		for _, v := range builtinVars {
			if strings.HasPrefix(path, v.name) {
				return nil
			}
		}
		return fmt.Errorf("workflow: unknown built-in variable in path %q", path)
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("workflow: absolute path is not allowed: %q", path)
	}
	return nil
}
