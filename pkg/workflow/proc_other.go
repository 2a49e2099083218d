// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package workflow

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// processAlive reports whether any running process's command name matches
// name exactly (case-sensitive, ".exe" suffix and all — Kill/IsAlive are
// Windows-shaped by design, and this host-agnostic fallback just
// compares against whatever `ps` reports, "Kill.exe" included).
func processAlive(name string) (bool, error) {
	names, err := processNames()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// killProcesses best-effort kills every running process whose command name
// exactly matches name with any trailing ".exe" removed (pgrep -x),
// returning the count signaled.
func killProcesses(name string) (int, error) {
	out, err := exec.Command("pgrep", "-x", strings.TrimSuffix(name, ".exe")).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return 0, nil // pgrep: no matches
		}
		return 0, fmt.Errorf("workflow: kill %q: %w", name, err)
	}
	killed := 0
	for _, line := range strings.Fields(string(out)) {
		pid, perr := parsePid(line)
		if perr != nil {
			continue
		}
		if proc, ferr := os.FindProcess(pid); ferr == nil {
			if proc.Kill() == nil {
				killed++
			}
		}
	}
	return killed, nil
}

func processNames() ([]string, error) {
	out, err := exec.Command("ps", "-e", "-o", "comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("workflow: ps: %w", err)
	}
	return strings.Fields(string(out)), nil
}

func parsePid(s string) (int, error) {
	var pid int
	_, err := fmt.Sscanf(s, "%d", &pid)
	return pid, err
}
