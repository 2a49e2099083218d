// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
	"github.com/nep-pkg/nep/pkg/tomlformat"
)

// Workflow is an ordered list of nodes decoded from one workflow TOML file
// (setup.toml, update.toml, remove.toml, or expand.toml).
type Workflow struct {
	Nodes []*Node
}

// Parse decodes raw into a Workflow, preserving the node order the TOML
// file's `[[node]]` array was authored in.
func Parse(raw *tomlformat.RawWorkflow) (*Workflow, error) {
	nodes, err := DecodeNodes(raw.Node)
	if err != nil {
		return nil, err
	}
	return &Workflow{Nodes: nodes}, nil
}

// Load reads and parses a workflow TOML file from path.
func Load(path string) (*Workflow, error) {
	raw, err := tomlformat.LoadWorkflow(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// conditions returns every c_if on the workflow's nodes, in node order.
func (w *Workflow) conditions() []string {
	var out []string
	for _, n := range w.Nodes {
		if n.Header.CIf != "" {
			out = append(out, n.Header.CIf)
		}
	}
	return out
}

// Verify walks each node in order: header.VerifySelf, body.VerifySelf,
// then manifest_validator against the MixedFS state accumulated by
// preceding steps' GetManifest declarations.
func (w *Workflow) Verify(ctx context.Context, located string) error {
	if err := VerifyConditions(w.conditions(), located); err != nil {
		return err
	}

	fs := mixedfs.New(ctx, located)
	for _, n := range w.Nodes {
		if err := n.Header.VerifySelf(); err != nil {
			return err
		}
		if err := n.Body.VerifySelf(); err != nil {
			return fmt.Errorf("workflow: node %q: %w", n.Header.Name, err)
		}
		if err := n.Body.VerifyManifest(ctx, fs); err != nil {
			return fmt.Errorf("workflow: node %q: %w", n.Header.Name, err)
		}
		if err := n.Body.GetManifest(ctx, fs); err != nil {
			return fmt.Errorf("workflow: node %q: %w", n.Header.Name, err)
		}
	}
	return nil
}

// BindPathSteps fills in every Path step's BinDir/Scope before Execute or
// ReverseExecute runs: the step itself only knows its payload-relative
// record, not where the installed database's shared bin/ directory lives
// or which scope qualifies its shim name.
func (w *Workflow) BindPathSteps(binDir, scope string) {
	for _, n := range w.Nodes {
		if p, ok := n.Body.(*PathStep); ok {
			p.BinDir = binDir
			p.Scope = scope
		}
	}
}

// GeneralizePermissions collects and merges the permissions every step and
// every c_if condition in the workflow declares; merging is idempotent, so
// generalizing twice and union-merging equals generalizing once.
func (w *Workflow) GeneralizePermissions() ([]Permission, error) {
	var perms []Permission

	condPerms, err := PermissionsFromConditions(w.conditions())
	if err != nil {
		return nil, err
	}
	perms = append(perms, condPerms...)

	for _, n := range w.Nodes {
		stepPerms, err := n.Body.GeneralizePermissions()
		if err != nil {
			return nil, fmt.Errorf("workflow: node %q: %w", n.Header.Name, err)
		}
		perms = append(perms, stepPerms...)
	}
	return MergePermissions(perms), nil
}

// Execute runs every node in order against wctx. Each node's c_if (if
// present) is evaluated first against the current exit code and gates
// whether the node runs at all; the body is then interpreted (variable
// substitution) and run, and the resulting exit code becomes wctx's
// ExitCode for the next node. A step that errors outright counts as exit
// code 1. In strict mode, a non-zero exit aborts the whole workflow;
// otherwise execution continues so a later c_if can react to ${ExitCode}.
func (w *Workflow) Execute(ctx context.Context, wctx Context, strict bool) error {
	fns := liveFunctions(wctx.Located)
	for _, n := range w.Nodes {
		if n.Header.CIf != "" {
			ok, err := EvalBool(wctx, fns, n.Header.CIf)
			if err != nil {
				return fmt.Errorf("workflow: node %q: c_if: %w", n.Header.Name, err)
			}
			if !ok {
				dlog.Debugf(ctx, "workflow: node %q: c_if false, skipping", n.Header.Name)
				continue
			}
		}

		body := n.Body.Interpret(wctx)
		code, err := body.Run(ctx, wctx)
		if err != nil {
			// A step failure is not fatal by itself: it becomes
			// ${ExitCode}=1 so a later c_if can react to it, and only
			// strict mode turns it into an abort below.
			dlog.Warnf(ctx, "workflow: node %q failed to execute: %v", n.Header.Name, err)
			code = 1
		} else if code != 0 {
			dlog.Warnf(ctx, "workflow: node %q exited %d", n.Header.Name, code)
		}
		if code != 0 && strict {
			return fmt.Errorf("workflow: node %q: exit code %d (strict mode)", n.Header.Name, code)
		}
		wctx.ExitCode = code
	}
	return nil
}

// ReverseExecute walks the same node list in the same forward order —
// deliberately not reversed: later steps may depend on
// paths earlier steps established (e.g. a Path shim's reverse needs to
// recompute its name from the payload path a preceding step recorded).
// ${ExitCode} is fixed at 0 throughout. Every node's reverse runs
// regardless of its c_if: reverse is best-effort cleanup, not a mirror of
// which nodes actually ran forward, and individual failures are logged but
// never propagated.
func (w *Workflow) ReverseExecute(ctx context.Context, wctx Context) {
	wctx.ExitCode = 0
	for _, n := range w.Nodes {
		body := n.Body.Interpret(wctx)
		if err := body.ReverseRun(ctx, wctx); err != nil {
			dlog.Warnf(ctx, "workflow: node %q: reverse: %v", n.Header.Name, err)
		}
	}
}
