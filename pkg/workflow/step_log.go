// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// LogStep emits a structured log line; it has no filesystem effect
// and declares no permission.
type LogStep struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func decodeLogStep(params map[string]interface{}) (*LogStep, error) {
	var s LogStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *LogStep) Run(ctx context.Context, wctx Context) (int, error) {
	switch s.Level {
	case "debug":
		dlog.Debugf(ctx, "%s", s.Msg)
	case "warn":
		dlog.Warnf(ctx, "%s", s.Msg)
	case "error":
		dlog.Errorf(ctx, "%s", s.Msg)
	default:
		dlog.Infof(ctx, "%s", s.Msg)
	}
	return 0, nil
}

func (s *LogStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *LogStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *LogStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *LogStep) Interpret(wctx Context) Step {
	out := *s
	out.Msg = Interpret(wctx, s.Msg)
	return &out
}

func (s *LogStep) VerifySelf() error {
	switch s.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("workflow: Log: unrecognized level %q", s.Level)
	}
}

func (s *LogStep) GeneralizePermissions() ([]Permission, error) { return nil, nil }
