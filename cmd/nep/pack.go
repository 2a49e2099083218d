// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/nep-pkg/nep/pkg/cliutil"
)

var packCmd = &cobra.Command{
	Use:   "pack SRC_DIR OUT_FILE",
	Short: "Pack a source directory into a .nep package file",

	Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := newOrchestrator(cmd)
		return o.Pack(cmd.Context(), args[0], args[1])
	},
}

func init() {
	argparser.AddCommand(packCmd)
}
