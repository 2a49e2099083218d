// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// executeGracePeriod is how long a "delay"-mode Execute waits after
// spawning before moving on without joining the child — long enough to
// surface an immediate launch failure, short enough not to block the rest
// of the workflow on a long-running companion process.
const executeGracePeriod = 3 * time.Second

// ExecuteStep spawns a shell command. `command` is run through the
// host shell (cmd.exe /C on Windows, sh -c elsewhere) rather than argv-
// split directly, because workflows rely on shell builtins such as `exit`.
type ExecuteStep struct {
	Command       string `json:"command"`
	Pwd           string `json:"pwd,omitempty"`
	CallInstaller string `json:"call_installer,omitempty"`
	Wait          string `json:"wait,omitempty"` // "sync" (default) | "delay" | "abandon"
}

func decodeExecuteStep(params map[string]interface{}) (*ExecuteStep, error) {
	var s ExecuteStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *ExecuteStep) waitMode() string {
	if s.Wait == "" {
		return "sync"
	}
	return s.Wait
}

func (s *ExecuteStep) Run(ctx context.Context, wctx Context) (int, error) {
	cmd := shellCommand(ctx, s.Command)
	if s.Pwd != "" {
		cmd.Dir = resolveLivePath(wctx.Located, s.Pwd)
	} else {
		cmd.Dir = wctx.Located
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	switch s.waitMode() {
	case "abandon":
		if err := cmd.Start(); err != nil {
			return 1, fmt.Errorf("workflow: Execute: %w", err)
		}
		dlog.Infof(ctx, "execute: abandoned %q (pid %d)", s.Command, cmd.Process.Pid)
		return 0, nil
	case "delay":
		if err := cmd.Start(); err != nil {
			return 1, fmt.Errorf("workflow: Execute: %w", err)
		}
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err := <-done:
			return exitCodeOf(err, &stdout, &stderr, ctx)
		case <-time.After(executeGracePeriod):
			dlog.Infof(ctx, "execute: %q still running after grace period, continuing", s.Command)
			return 0, nil
		}
	default: // "sync"
		err := cmd.Run()
		return exitCodeOf(err, &stdout, &stderr, ctx)
	}
}

func exitCodeOf(err error, stdout, stderr *bytes.Buffer, ctx context.Context) (int, error) {
	if stdout.Len() > 0 {
		dlog.Debugf(ctx, "execute: stdout: %s", stdout.String())
	}
	if stderr.Len() > 0 {
		dlog.Debugf(ctx, "execute: stderr: %s", stderr.String())
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *dexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("workflow: Execute: %w", err)
}

// ReverseRun runs the uninstall command when call_installer is set, since
// an Execute step that launched a third-party installer is the only way to
// invoke that installer's own uninstaller; without call_installer it is a
// no-op.
func (s *ExecuteStep) ReverseRun(ctx context.Context, wctx Context) error {
	if s.CallInstaller == "" {
		return nil
	}
	cmd := shellCommand(ctx, s.CallInstaller)
	cmd.Dir = wctx.Located
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("workflow: Execute: reverse: %w", err)
	}
	return nil
}

func (s *ExecuteStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *ExecuteStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *ExecuteStep) Interpret(wctx Context) Step {
	out := *s
	out.Command = Interpret(wctx, s.Command)
	out.Pwd = Interpret(wctx, s.Pwd)
	out.CallInstaller = Interpret(wctx, s.CallInstaller)
	return &out
}

func (s *ExecuteStep) VerifySelf() error {
	if s.Command == "" {
		return fmt.Errorf("workflow: Execute: command is required")
	}
	switch s.waitMode() {
	case "sync", "delay", "abandon":
	default:
		return fmt.Errorf("workflow: Execute: wait must be 'sync', 'delay', or 'abandon', got %q", s.Wait)
	}
	return nil
}

func (s *ExecuteStep) GeneralizePermissions() ([]Permission, error) {
	if s.CallInstaller != "" {
		return []Permission{{Key: PermExecuteInstaller, Level: Important, Targets: []string{s.Command}}}, nil
	}
	return []Permission{{Key: PermExecuteCustom, Level: Sensitive, Targets: []string{s.Command}}}, nil
}
