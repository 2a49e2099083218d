// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nep-pkg/nep/pkg/cliutil"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall SCOPE/NAME",
	Short: "Uninstall an installed package",

	Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, name, ok := strings.Cut(args[0], "/")
		if !ok {
			return cliutil.FlagErrorFunc(cmd, fmt.Errorf("expected SCOPE/NAME, got %q", args[0]))
		}
		o := newOrchestrator(cmd)
		return o.Uninstall(cmd.Context(), scope, name)
	},
}

func init() {
	argparser.AddCommand(uninstallCmd)
}
