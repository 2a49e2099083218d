// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Command nep is the CLI entrypoint. Argument parsing, config loading, the
// mirror HTTP client, and terminal progress bars are external collaborators
//; this package only wires flags onto pkg/orchestrator and is
// deliberately thin.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nep-pkg/nep/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "nep {[flags]|SUBCOMMAND...}",
	Short: "Install and manage self-contained application packages",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

// addGlobalFlags registers the global flag set (--yes, --strict,
// --offline, --qa, --debug) on fs.
func addGlobalFlags(fs *pflag.FlagSet) {
	fs.Bool("yes", false, "assume yes to all prompts")
	fs.Bool("strict", false, "abort a workflow on the first non-zero step exit")
	fs.Bool("offline", false, "never reach out to a mirror")
	fs.Bool("qa", false, "non-interactive quality-assurance mode")
	fs.Bool("debug", false, "retain scratch directories instead of cleaning them up")
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	addGlobalFlags(argparser.PersistentFlags())
}

func main() {
	ctx := context.Background()
	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
