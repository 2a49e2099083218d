// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package workflow

import (
	"context"

	"github.com/datawire/dlib/dexec"
)

func shellCommand(ctx context.Context, command string) *dexec.Cmd {
	return dexec.CommandContext(ctx, "cmd.exe", "/C", command)
}
