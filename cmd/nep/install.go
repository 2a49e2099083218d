// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/nep-pkg/nep/pkg/cliutil"
)

var installCmd = &cobra.Command{
	Use:   "install PACKAGE",
	Short: "Install a package from a local file, directory, or scope/name matcher",

	Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := newOrchestrator(cmd)
		return o.Install(cmd.Context(), args[0])
	},
}

func init() {
	argparser.AddCommand(installCmd)
}
