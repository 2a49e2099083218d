// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"

	"github.com/nep-pkg/nep/pkg/tomlformat"
)

// Header is a workflow node's {name, step, c_if?} preamble.
type Header struct {
	Name string
	Step StepKind
	CIf  string
}

// VerifySelf checks that CIf, if present, parses as a boolean expression.
// Permission/argument validation of any captured function calls is done
// separately by VerifyConditions over the whole workflow's condition set.
func (h Header) VerifySelf() error {
	if h.CIf == "" {
		return nil
	}
	if _, err := EvalBool(Context{}, Functions{
		Exist:       func(string) (bool, error) { return true, nil },
		IsDirectory: func(string) (bool, error) { return true, nil },
		IsAlive:     func(string) (bool, error) { return true, nil },
		IsInstalled: func(string) (bool, error) { return true, nil },
	}, h.CIf); err != nil {
		return fmt.Errorf("workflow: node %q: c_if: %w", h.Name, err)
	}
	return nil
}

// Node is one decoded workflow step: its header and its concrete body.
type Node struct {
	Header Header
	Body   Step
}

// DecodeNode decodes one raw TOML node into a concrete Node, dispatching
// on raw.Step to pick the step variant. Unknown step names are a parse
// error naming the offending node.
func DecodeNode(raw tomlformat.RawNode) (*Node, error) {
	h := Header{Name: raw.Name, Step: StepKind(raw.Step), CIf: raw.CIf}

	var body Step
	var err error
	switch h.Step {
	case StepLink:
		body, err = decodeLinkStep(raw.Params)
	case StepExecute:
		body, err = decodeExecuteStep(raw.Params)
	case StepPath:
		body, err = decodePathStep(raw.Params)
	case StepLog:
		body, err = decodeLogStep(raw.Params)
	case StepCopy:
		body, err = decodeCopyStep(raw.Params)
	case StepMove:
		body, err = decodeMoveStep(raw.Params)
	case StepRename:
		body, err = decodeRenameStep(raw.Params)
	case StepNew:
		body, err = decodeNewStep(raw.Params)
	case StepDelete:
		body, err = decodeDeleteStep(raw.Params)
	case StepDownload:
		body, err = decodeDownloadStep(raw.Params)
	case StepKill:
		body, err = decodeKillStep(raw.Params)
	case StepWait:
		body, err = decodeWaitStep(raw.Params)
	case StepToast:
		body, err = decodeToastStep(raw.Params)
	default:
		return nil, fmt.Errorf("workflow: node %q: unknown step %q", raw.Name, raw.Step)
	}
	if err != nil {
		return nil, fmt.Errorf("workflow: node %q: %w", raw.Name, err)
	}
	return &Node{Header: h, Body: body}, nil
}

// DecodeNodes decodes an entire raw node list in order.
func DecodeNodes(raw []tomlformat.RawNode) ([]*Node, error) {
	nodes := make([]*Node, 0, len(raw))
	for _, r := range raw {
		n, err := DecodeNode(r)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
