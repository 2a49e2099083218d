// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/nep-pkg/nep/pkg/cliutil"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove orphaned app directories and PATH shims",

	Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := newOrchestrator(cmd)
		return o.Clean(cmd.Context())
	},
}

func init() {
	argparser.AddCommand(cleanCmd)
}
