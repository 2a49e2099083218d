// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package workflow

import (
	"context"

	"github.com/datawire/dlib/dexec"
)

// shellCommand builds the command that runs command through the host
// shell, the way Execute's c_if/${ExitCode} interplay assumes: `exit 3`
// is a shell builtin, not a program.
func shellCommand(ctx context.Context, command string) *dexec.Cmd {
	return dexec.CommandContext(ctx, "sh", "-c", command)
}
