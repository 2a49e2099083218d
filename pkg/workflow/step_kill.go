// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// KillStep force-kills every running process whose name exactly matches
// Target.
type KillStep struct {
	Target string `json:"target"`
}

func decodeKillStep(params map[string]interface{}) (*KillStep, error) {
	var s KillStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *KillStep) Run(ctx context.Context, wctx Context) (int, error) {
	n, err := killProcesses(s.Target)
	if err != nil {
		return 1, fmt.Errorf("workflow: Kill: %w", err)
	}
	dlog.Infof(ctx, "kill: signaled %d process(es) named %q", n, s.Target)
	return 0, nil
}

func (s *KillStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *KillStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *KillStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *KillStep) Interpret(wctx Context) Step {
	out := *s
	out.Target = Interpret(wctx, s.Target)
	return &out
}

func (s *KillStep) VerifySelf() error {
	if s.Target == "" {
		return fmt.Errorf("workflow: Kill: target is required")
	}
	if !strings.HasSuffix(strings.ToLower(s.Target), ".exe") {
		return fmt.Errorf("workflow: Kill: target should end with '.exe', got %q", s.Target)
	}
	return nil
}

func (s *KillStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{{Key: PermProcessKill, Level: Sensitive, Targets: []string{s.Target}}}, nil
}
