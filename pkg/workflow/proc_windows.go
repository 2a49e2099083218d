// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package workflow

import (
	"fmt"
	"os/exec"
	"strings"
)

// processAlive reports whether any running process's image name matches
// name (e.g. "Code.exe"), ignoring case.
func processAlive(name string) (bool, error) {
	names, err := processNames()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true, nil
		}
	}
	return false, nil
}

// killProcesses force-kills every running process whose image name exactly
// matches name. taskkill does not report how many it killed, so the count
// returned is 1 when it succeeded and 0 when no process matched.
func killProcesses(name string) (int, error) {
	cmd := exec.Command("taskkill", "/F", "/IM", name)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 128 {
			return 0, nil // taskkill: no matching process
		}
		return 0, fmt.Errorf("workflow: kill %q: %w", name, err)
	}
	return 1, nil
}

func processNames() ([]string, error) {
	out, err := exec.Command("tasklist", "/FO", "CSV", "/NH").Output()
	if err != nil {
		return nil, fmt.Errorf("workflow: tasklist: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(out), "\r\n") {
		fields := strings.Split(line, "\",\"")
		if len(fields) == 0 {
			continue
		}
		names = append(names, strings.Trim(fields[0], "\""))
	}
	return names, nil
}
