// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"os"
	"path/filepath"
	"strings"
)

// InstalledChecker is consulted by the IsInstalled() condition function.
// cmd/nep wires this to the installed database's InfoLocal lookup when it
// builds the orchestrator; while it is nil (verification passes that run
// before that, tests), IsInstalled reports nothing installed.
var InstalledChecker func(id string) (bool, error)

// resolveLivePath expands a recognized ${Var} prefix and joins a
// payload-relative path against located, producing a real filesystem path
// liveFunctions can stat.
func resolveLivePath(located, p string) string {
	for _, v := range builtinVars {
		if strings.HasPrefix(p, v.name) {
			rest := strings.TrimPrefix(p, v.name)
			return filepath.Join(v.resolve(Context{Located: located}), filepath.FromSlash(rest))
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(located, filepath.FromSlash(p))
}

// liveFunctions returns the real (non-stub) extension function set,
// evaluated against the actual disk, process table, and installed
// database. Used both by VerifyConditions (to confirm an expression
// evaluates without error against a real location) and by the interpreter
// during actual step execution.
func liveFunctions(located string) Functions {
	return Functions{
		Exist: func(path string) (bool, error) {
			_, err := os.Stat(resolveLivePath(located, path))
			if err == nil {
				return true, nil
			}
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		},
		IsDirectory: func(path string) (bool, error) {
			info, err := os.Stat(resolveLivePath(located, path))
			if err != nil {
				if os.IsNotExist(err) {
					return false, nil
				}
				return false, err
			}
			return info.IsDir(), nil
		},
		IsAlive: func(name string) (bool, error) {
			return processAlive(name)
		},
		IsInstalled: func(id string) (bool, error) {
			if InstalledChecker == nil {
				return false, nil
			}
			return InstalledChecker(id)
		},
	}
}
