// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/nep-pkg/nep/pkg/cliutil"
)

var updateCmd = &cobra.Command{
	Use:   "update PACKAGE",
	Short: "Update an installed package from a fresher package file",

	Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := newOrchestrator(cmd)
		return o.Update(cmd.Context(), args[0])
	},
}

func init() {
	argparser.AddCommand(updateCmd)
}
