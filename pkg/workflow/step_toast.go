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

// ToastStep raises a system notification. The real toast-rendering
// backend is an external collaborator; here it's logged, the same
// substitute used in headless and CI contexts.
type ToastStep struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func decodeToastStep(params map[string]interface{}) (*ToastStep, error) {
	var s ToastStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *ToastStep) Run(ctx context.Context, wctx Context) (int, error) {
	dlog.Infof(ctx, "toast: %s: %s", s.Title, s.Content)
	return 0, nil
}

func (s *ToastStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *ToastStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *ToastStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *ToastStep) Interpret(wctx Context) Step {
	out := *s
	out.Title = Interpret(wctx, s.Title)
	out.Content = Interpret(wctx, s.Content)
	return &out
}

func (s *ToastStep) VerifySelf() error {
	if s.Title == "" {
		return fmt.Errorf("workflow: Toast: title is required")
	}
	return nil
}

func (s *ToastStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{{Key: PermNotifyToast, Level: Normal, Targets: []string{s.Title}}}, nil
}
