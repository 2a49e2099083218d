// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nep-pkg/nep/pkg/cliutil"
)

var metaCmd = &cobra.Command{
	Use:   "meta SCOPE/NAME",
	Short: "List the permissions an installed package's setup workflow declared",

	Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, name, ok := strings.Cut(args[0], "/")
		if !ok {
			return cliutil.FlagErrorFunc(cmd, fmt.Errorf("expected SCOPE/NAME, got %q", args[0]))
		}
		o := newOrchestrator(cmd)
		installDir := o.DB.InstallDir(scope, name)
		setupPath := filepath.Join(installDir, ".nep_context", "workflows", "setup.toml")
		perms, err := o.Meta(cmd.Context(), setupPath, installDir)
		if err != nil {
			return err
		}
		for _, p := range perms {
			fmt.Printf("%s\t%s\t%s\n", p.Level, p.Key, strings.Join(p.Targets, ","))
		}
		return nil
	},
}

func init() {
	argparser.AddCommand(metaCmd)
}
