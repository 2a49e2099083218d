// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nep-pkg/nep/pkg/flags"
	"github.com/nep-pkg/nep/pkg/installdb"
	"github.com/nep-pkg/nep/pkg/keystore"
	"github.com/nep-pkg/nep/pkg/orchestrator"
	"github.com/nep-pkg/nep/pkg/unpack"
	"github.com/nep-pkg/nep/pkg/workflow"
)

// baseDir is the installed-database root. Reading
// eptrc.toml's local.base is the external config loader's job;
// this CLI shim only falls back to an environment variable or a sane
// per-user default so the orchestrator has somewhere to point.
func baseDir() string {
	if b := os.Getenv("EPT_LOCAL_BASE"); b != "" {
		return b
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".nep")
	}
	return filepath.Join(home, "ept")
}

// setFlagsFromCmd latches the process-wide flag table from this
// invocation's persistent flags. It is a no-op after the first call.
func setFlagsFromCmd(cmd *cobra.Command) {
	yes, _ := cmd.Flags().GetBool("yes")
	strict, _ := cmd.Flags().GetBool("strict")
	offline, _ := cmd.Flags().GetBool("offline")
	qa, _ := cmd.Flags().GetBool("qa")
	debug, _ := cmd.Flags().GetBool("debug")
	flags.Set(flags.Table{
		Debug:     debug,
		Confirm:   !yes,
		Strict:    strict,
		Offline:   offline,
		QA:        qa,
		NoWarning: qa,
	})
}

// newOrchestrator builds an Orchestrator against the default installed
// database. Keys is an empty keystore.MapStore (no own key, no trusted
// keys) and Mirror is left nil: supplying a real keystore (OS keychain, PEM
// file) and a real mirror client (HTTP index fetch, on-disk cache) is the
// job of external collaborators this module does not implement.
func newOrchestrator(cmd *cobra.Command) *orchestrator.Orchestrator {
	setFlagsFromCmd(cmd)
	db := installdb.New(baseDir())
	workflow.InstalledChecker = func(id string) (bool, error) {
		scope, name, ok := strings.Cut(id, "/")
		if !ok {
			return false, nil
		}
		_, err := db.InfoLocal(scope, name)
		return err == nil, nil
	}
	return &orchestrator.Orchestrator{
		DB:          db,
		Keys:        &keystore.MapStore{},
		Confirm:     promptConfirm,
		ScratchRoot: unpack.CacheDir(),
	}
}

// promptConfirm is a minimal terminal confirmer. A richer prompt (color, a
// [y/N] default hint, readline editing) belongs to the external
// terminal-I/O collaborator; this is just enough to let Confirm's
// contract be exercised end to end.
func promptConfirm(prompt string) bool {
	if flags.Current().QA {
		return true
	}
	fmt.Printf("%s [y/N] ", prompt)
	var resp string
	_, _ = fmt.Scanln(&resp)
	switch resp {
	case "y", "Y", "yes":
		return true
	default:
		return false
	}
}
