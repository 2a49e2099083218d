// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// maxWaitMillis bounds Wait.timeout_ms at 30 minutes.
const maxWaitMillis = 30 * 60 * 1000

// waitPollInterval is how often break_if is re-evaluated while waiting.
const waitPollInterval = 500 * time.Millisecond

// WaitStep sleeps up to TimeoutMs, polling BreakIf every 500ms when
// present; exit code 0 if the condition held before the timeout elapsed, 1
// if it timed out.
type WaitStep struct {
	TimeoutMs int64  `json:"timeout_ms"`
	BreakIf   string `json:"break_if,omitempty"`
}

func decodeWaitStep(params map[string]interface{}) (*WaitStep, error) {
	var s WaitStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *WaitStep) Run(ctx context.Context, wctx Context) (int, error) {
	deadline := time.Now().Add(time.Duration(s.TimeoutMs) * time.Millisecond)
	if s.BreakIf == "" {
		time.Sleep(time.Until(deadline))
		return 0, nil
	}

	fns := liveFunctions(wctx.Located)
	for {
		ok, err := EvalBool(wctx, fns, s.BreakIf)
		if err != nil {
			return 1, fmt.Errorf("workflow: Wait: break_if: %w", err)
		}
		if ok {
			return 0, nil
		}
		if time.Now().After(deadline) {
			dlog.Warnf(ctx, "wait: timed out after %dms waiting for %q", s.TimeoutMs, s.BreakIf)
			return 1, nil
		}
		select {
		case <-ctx.Done():
			return 1, ctx.Err()
		case <-time.After(waitPollInterval):
		}
	}
}

func (s *WaitStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *WaitStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *WaitStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *WaitStep) Interpret(wctx Context) Step {
	out := *s
	out.BreakIf = Interpret(wctx, s.BreakIf)
	return &out
}

func (s *WaitStep) VerifySelf() error {
	if s.TimeoutMs > maxWaitMillis {
		return fmt.Errorf("workflow: Wait: timeout_ms must be <= %d, got %d", maxWaitMillis, s.TimeoutMs)
	}
	if s.TimeoutMs < 0 {
		return fmt.Errorf("workflow: Wait: timeout_ms must be non-negative")
	}
	return nil
}

func (s *WaitStep) GeneralizePermissions() ([]Permission, error) {
	if s.BreakIf == "" {
		return nil, nil
	}
	return PermissionsFromConditions([]string{s.BreakIf})
}
