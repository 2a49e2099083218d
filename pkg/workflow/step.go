// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

// Step is the shared interface every step-taxonomy variant implements,
// over a tagged union of concrete step payloads. The set of concrete
// implementations is closed — DecodeNode (node.go) is the only place new
// step kinds are registered — so VerifySelf/GetManifest passes can exhaustively
// handle every step.
type Step interface {
	// Run performs the step's forward effect and returns its exit code
	// (0 on success; non-zero codes are handled by the interpreter
	// rather than by the step itself).
	Run(ctx context.Context, wctx Context) (int, error)
	// ReverseRun performs the step's best-effort undo. Errors are
	// logged by the caller and never propagated.
	ReverseRun(ctx context.Context, wctx Context) error
	// GetManifest declares this step's referenced payload paths and
	// filesystem side effects into fs.
	GetManifest(ctx context.Context, fs *mixedfs.FS) error
	// VerifyManifest checks that any payload-relative path this step
	// reads from already exists per fs's state so far (manifest_validator,
	// Steps with nothing to read (Log, Execute, Kill, Wait,
	// Toast, New, Download) no-op.
	VerifyManifest(ctx context.Context, fs *mixedfs.FS) error
	// Interpret returns a copy of the step with every string field's
	// ${...} variable references substituted per wctx.
	Interpret(wctx Context) Step
	// VerifySelf structurally validates the step's fields (independent
	// of any particular payload root, except where a boundary
	// behaviors name a path check).
	VerifySelf() error
	// GeneralizePermissions declares the abstract permissions this
	// step needs.
	GeneralizePermissions() ([]Permission, error)
}

// StepKind is the value of a workflow node's `step` key.
type StepKind string

const (
	StepLink    StepKind = "Link"
	StepExecute StepKind = "Execute"
	StepPath    StepKind = "Path"
	StepLog     StepKind = "Log"
	StepCopy    StepKind = "Copy"
	StepMove    StepKind = "Move"
	StepRename  StepKind = "Rename"
	StepNew     StepKind = "New"
	StepDelete  StepKind = "Delete"
	StepDownload StepKind = "Download"
	StepKill    StepKind = "Kill"
	StepWait    StepKind = "Wait"
	StepToast   StepKind = "Toast"
)

// decodeParams fills out (a pointer to a step body struct) from params, the
// raw TOML-decoded field map tomlformat.RawNode captures. A JSON
// marshal/unmarshal round trip is used rather than a bespoke field-walker:
// the values coming out of BurntSushi/toml's map[string]interface{} decode
// (string, int64, bool, []interface{}, nested maps) are exactly the shapes
// encoding/json already knows how to re-marshal and re-decode into a typed
// struct, so this gets field-name matching and type coercion for free.
func decodeParams(params map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("workflow: step: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("workflow: step: %w", err)
	}
	return nil
}

// checkManifestPath validates one required-existence path against fs: a
// wildcarded path is skipped (its expansion is a real-disk runtime
// concern, not something mixedfs can pre-declare), an empty path is a
// no-op, and a path fs doesn't believe will exist is either a hard error
// or — once some producer step has declared an addition, per
// fs.VarWarnManifest — merely logged.
func checkManifestPath(ctx context.Context, fs *mixedfs.FS, path string) error {
	if path == "" || hasWildcardSeg(path) {
		return nil
	}
	if fs.Exists(path) {
		return nil
	}
	if fs.VarWarnManifest {
		dlog.Warnf(ctx, "workflow: manifest path %q not found (may be produced at runtime)", path)
		return nil
	}
	return fmt.Errorf("workflow: manifest path %q does not exist", path)
}
