// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow_test

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nep-pkg/nep/pkg/tomlformat"
	"github.com/nep-pkg/nep/pkg/workflow"
)

func rawNode(name string, step workflow.StepKind, params map[string]interface{}) tomlformat.RawNode {
	return tomlformat.RawNode{Name: name, Step: string(step), Params: params}
}

func mustStep(t *testing.T, name string, step workflow.StepKind, params map[string]interface{}) workflow.Step {
	t.Helper()
	n, err := workflow.DecodeNode(rawNode(name, step, params))
	require.NoError(t, err)
	return n.Body
}

// TestStrictModeAbort: a first step that exits
// non-zero lets its successor run when strict mode is off (propagating
// ${ExitCode}), but aborts the whole workflow before the successor runs
// when strict mode is on.
func TestStrictModeAbort(t *testing.T) {
	dir := t.TempDir()
	newWorkflow := func() *workflow.Workflow {
		return &workflow.Workflow{
			Nodes: []*workflow.Node{
				{
					Header: workflow.Header{Name: "fail", Step: workflow.StepExecute},
					Body:   mustStep(t, "fail", workflow.StepExecute, map[string]interface{}{"command": "exit " + strconv.Itoa(3)}),
				},
				{
					Header: workflow.Header{Name: "log", Step: workflow.StepLog},
					Body:   mustStep(t, "log", workflow.StepLog, map[string]interface{}{"msg": "${ExitCode}"}),
				},
			},
		}
	}

	wctx := workflow.Context{Located: dir}

	require.NoError(t, newWorkflow().Execute(context.Background(), wctx, false /* strict */))
	require.Error(t, newWorkflow().Execute(context.Background(), wctx, true /* strict */))
}

// TestGeneralizePermissionsClosedUnderMerge: running generalize
// twice and union-merging the results equals running it once.
func TestGeneralizePermissionsClosedUnderMerge(t *testing.T) {
	wf := &workflow.Workflow{
		Nodes: []*workflow.Node{
			{
				Header: workflow.Header{Name: "kill-a", Step: workflow.StepKill},
				Body:   mustStep(t, "kill-a", workflow.StepKill, map[string]interface{}{"target": "a.exe"}),
			},
			{
				Header: workflow.Header{Name: "kill-b", Step: workflow.StepKill},
				Body:   mustStep(t, "kill-b", workflow.StepKill, map[string]interface{}{"target": "b.exe"}),
			},
		},
	}

	once, err := wf.GeneralizePermissions()
	require.NoError(t, err)

	twice := workflow.MergePermissions(append(append([]workflow.Permission{}, once...), once...))
	require.ElementsMatch(t, once, twice)
}

func TestLogStepVerifySelfRejectsUnknownLevel(t *testing.T) {
	n, err := workflow.DecodeNode(rawNode("log", workflow.StepLog, map[string]interface{}{
		"level": "trace",
		"msg":   "hi",
	}))
	require.NoError(t, err)
	require.Error(t, n.Body.VerifySelf())
}

// Boundary behaviors: each step's VerifySelf must reject the malformed
// shapes the format forbids.
func TestStepVerifySelfBoundaries(t *testing.T) {
	cases := []struct {
		name   string
		step   workflow.StepKind
		params map[string]interface{}
	}{
		{"wait timeout over 30 minutes", workflow.StepWait,
			map[string]interface{}{"timeout_ms": int64(30*60*1000 + 1)}},
		{"download at absolute", workflow.StepDownload,
			map[string]interface{}{"url": "https://example.com/f", "hash_blake3": strings.Repeat("ab", 32), "at": "/abs/f"}},
		{"download at wildcard", workflow.StepDownload,
			map[string]interface{}{"url": "https://example.com/f", "hash_blake3": strings.Repeat("ab", 32), "at": "dir/?.bin"}},
		{"download url not http", workflow.StepDownload,
			map[string]interface{}{"url": "ftp://example.com/f", "hash_blake3": strings.Repeat("ab", 32), "at": "f.bin"}},
		{"rename to with separator", workflow.StepRename,
			map[string]interface{}{"from": "a.txt", "to": "sub/b.txt"}},
		{"rename to with colon", workflow.StepRename,
			map[string]interface{}{"from": "a.txt", "to": "b:txt"}},
		{"rename to with dollar", workflow.StepRename,
			map[string]interface{}{"from": "a.txt", "to": "$b"}},
		{"copy wildcard from needs dir destination", workflow.StepCopy,
			map[string]interface{}{"from": "logs/*.log", "to": "backup"}},
		{"move wildcard from needs dir destination", workflow.StepMove,
			map[string]interface{}{"from": "logs/*.log", "to": "backup"}},
		{"copy wildcard not in last segment", workflow.StepCopy,
			map[string]interface{}{"from": "l*gs/a.log", "to": "backup/"}},
		{"copy wildcard destination", workflow.StepCopy,
			map[string]interface{}{"from": "a.log", "to": "backup/*.log"}},
		{"kill without exe suffix", workflow.StepKill,
			map[string]interface{}{"target": "Code"}},
		{"link absolute source", workflow.StepLink,
			map[string]interface{}{"source_file": "/usr/bin/code"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, mustStep(t, tc.name, tc.step, tc.params).VerifySelf())
		})
	}
}

func TestDecodeNodeRejectsUnknownStep(t *testing.T) {
	_, err := workflow.DecodeNode(tomlformat.RawNode{Name: "x", Step: "Teleport"})
	require.Error(t, err)
	require.ErrorContains(t, err, "Teleport")
}

// ${ExitCode} comparisons and extension-function capture drive the same
// evaluator; the capture pass must surface every call with its argument.
func TestCaptureFunctionCalls(t *testing.T) {
	calls, err := workflow.CaptureFunctionCalls([]string{
		`Exist("${AppData}/code") && IsAlive("Code.exe")`,
		`IsInstalled("Microsoft/VSCode") || IsDirectory("bin")`,
	})
	require.NoError(t, err)
	require.Len(t, calls, 4)
	require.Equal(t, "Exist", calls[0].Name)
	require.True(t, calls[0].IsPathArg)
	require.Equal(t, "IsAlive", calls[1].Name)
	require.Equal(t, "Code.exe", calls[1].Arg)
	require.Equal(t, "IsInstalled", calls[2].Name)
	require.Equal(t, "IsDirectory", calls[3].Name)
}

func TestEvalBoolExpressions(t *testing.T) {
	wctx := workflow.Context{ExitCode: 3}
	fns := workflow.Functions{}

	for expr, want := range map[string]bool{
		`1 + 2 == 3`:          true,
		`2 * 3 - 1 == 5`:      true,
		`10 / 2 >= 5`:         true,
		`"a" == "a"`:          true,
		`"a" != "b"`:          true,
		`!(2 > 3)`:            true,
		`${ExitCode} == 3`:    true,
		`${ExitCode} == 0`:    false,
		`${ExitCode} >= 1`:    true,
		`true && false`:       false,
		`true || false`:       true,
		`(1 < 2) && (2 < 3)`:  true,
	} {
		got, err := workflow.EvalBool(wctx, fns, expr)
		require.NoError(t, err, expr)
		require.Equal(t, want, got, expr)
	}

	for _, expr := range []string{
		`1 ==`,          // dangling operator
		`5 > "a"`,       // ordered comparison across kinds
		`1 + "a" == 2`,  // arithmetic on a string
		`1 / 0 == 0`,    // division by zero
		`Nope("x")`,     // unknown function
		`5`,             // non-boolean result
	} {
		_, err := workflow.EvalBool(wctx, fns, expr)
		require.Error(t, err, expr)
	}
}

// A step that fails outright (not just a non-zero exit) becomes
// ${ExitCode}=1 and the workflow continues in non-strict mode, so a later
// c_if can react to the failure; strict mode aborts on it like any other
// non-zero code.
func TestStepFailureContinuesUnlessStrict(t *testing.T) {
	dir := t.TempDir()
	newWorkflow := func() *workflow.Workflow {
		return &workflow.Workflow{
			Nodes: []*workflow.Node{
				{
					Header: workflow.Header{Name: "copy-missing", Step: workflow.StepCopy},
					Body:   mustStep(t, "copy-missing", workflow.StepCopy, map[string]interface{}{"from": "missing.txt", "to": "dst.txt"}),
				},
				{
					Header: workflow.Header{Name: "recover", Step: workflow.StepNew, CIf: "${ExitCode} == 1"},
					Body:   mustStep(t, "recover", workflow.StepNew, map[string]interface{}{"at": "recovered.txt"}),
				},
			},
		}
	}

	wctx := workflow.Context{Located: dir}

	require.NoError(t, newWorkflow().Execute(context.Background(), wctx, false /* strict */))
	require.FileExists(t, filepath.Join(dir, "recovered.txt"),
		"the recovery step's c_if must see the failed step's exit code")

	require.Error(t, newWorkflow().Execute(context.Background(), wctx, true /* strict */))
}
