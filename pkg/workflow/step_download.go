// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/blake3hash"
	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// DownloadStep fetches a URL, verifies its BLAKE3 digest, and saves it at a
// payload-relative path. Progress rendering is an external
// collaborator's concern; this step only performs the GET and the
// hash check.
type DownloadStep struct {
	URL        string `json:"url"`
	HashBlake3 string `json:"hash_blake3"`
	At         string `json:"at"`
}

func decodeDownloadStep(params map[string]interface{}) (*DownloadStep, error) {
	var s DownloadStep
	if err := decodeParams(params, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *DownloadStep) Run(ctx context.Context, wctx Context) (int, error) {
	want, err := blake3hash.ParseDigest(s.HashBlake3)
	if err != nil {
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}

	target := filepath.Join(wctx.Located, filepath.FromSlash(s.At))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1, fmt.Errorf("workflow: Download: %s: unexpected status %s", s.URL, resp.Status)
	}

	tmp := target + ".downloading"
	out, err := os.Create(tmp)
	if err != nil {
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}
	dlog.Infof(ctx, "download: %s -> %s (%d bytes)", s.URL, target, resp.ContentLength)
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}

	got, err := blake3hash.File(tmp)
	if err != nil {
		os.Remove(tmp)
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}
	if got != want {
		os.Remove(tmp)
		return 1, fmt.Errorf("workflow: Download: %s: digest mismatch: want %s, got %s", s.URL, want, got)
	}
	if err := os.Rename(tmp, target); err != nil {
		return 1, fmt.Errorf("workflow: Download: %w", err)
	}
	return 0, nil
}

func (s *DownloadStep) ReverseRun(ctx context.Context, wctx Context) error { return nil }

func (s *DownloadStep) GetManifest(ctx context.Context, fs *mixedfs.FS) error {
	fs.Add(s.At, "")
	return nil
}

func (s *DownloadStep) VerifyManifest(ctx context.Context, fs *mixedfs.FS) error { return nil }

func (s *DownloadStep) Interpret(wctx Context) Step {
	out := *s
	out.URL = Interpret(wctx, s.URL)
	out.At = Interpret(wctx, s.At)
	return &out
}

func (s *DownloadStep) VerifySelf() error {
	if s.URL == "" {
		return fmt.Errorf("workflow: Download: url is required")
	}
	if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return fmt.Errorf("workflow: Download: url must be http(s), got %q", s.URL)
	}
	if len(s.HashBlake3) != 64 {
		return fmt.Errorf("workflow: Download: hash_blake3 must be 64 hex characters")
	}
	if _, err := blake3hash.ParseDigest(s.HashBlake3); err != nil {
		return fmt.Errorf("workflow: Download: %w", err)
	}
	if s.At == "" {
		return fmt.Errorf("workflow: Download: at is required")
	}
	if filepath.IsAbs(s.At) || strings.ContainsAny(s.At, "*?") {
		return fmt.Errorf("workflow: Download: at must be a relative, non-wildcard path, got %q", s.At)
	}
	return nil
}

func (s *DownloadStep) GeneralizePermissions() ([]Permission, error) {
	return []Permission{{Key: PermDownloadFile, Level: Important, Targets: []string{s.URL, s.At}}}, nil
}
