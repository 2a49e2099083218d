// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package tomlformat

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// RawNode is a workflow TOML node before it's decoded into a concrete step
// variant. Params holds every body field verbatim; pkg/workflow
// matches Step against the step taxonomy and decodes Params into the
// matching Go struct.
//
// Workflow TOML files are a top-level `[[node]]` array; BurntSushi/toml
// preserves array order, which is what lets the interpreter run nodes in
// the order they were authored.
type RawNode struct {
	Name   string                 `toml:"name"`
	Step   string                 `toml:"step"`
	CIf    string                 `toml:"c_if,omitempty"`
	Params map[string]interface{} `toml:"-"`
}

// RawWorkflow is the raw decoded shape of a workflow TOML file (setup.toml,
// update.toml, remove.toml, expand.toml).
type RawWorkflow struct {
	Node []RawNode `toml:"node"`
}

// UnmarshalTOML implements toml.Unmarshaler so each node's body fields
// (everything besides name/step/c_if) land in Params instead of being
// rejected by strict decoding.
func (n *RawNode) UnmarshalTOML(data interface{}) error {
	m, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("tomlformat: workflow node must be a table")
	}
	if name, ok := m["name"].(string); ok {
		n.Name = name
	}
	step, ok := m["step"].(string)
	if !ok || step == "" {
		return fmt.Errorf("tomlformat: workflow node missing required 'step' key")
	}
	n.Step = step
	if cIf, ok := m["c_if"].(string); ok {
		n.CIf = cIf
	}

	n.Params = make(map[string]interface{}, len(m))
	for k, v := range m {
		switch k {
		case "name", "step", "c_if":
			continue
		default:
			n.Params[k] = v
		}
	}
	return nil
}

// DecodeWorkflow decodes a workflow TOML file's raw node list.
func DecodeWorkflow(data []byte) (*RawWorkflow, error) {
	var w RawWorkflow
	if _, err := toml.Decode(string(data), &w); err != nil {
		return nil, fmt.Errorf("tomlformat: workflow: %w", err)
	}
	for i, node := range w.Node {
		if node.Step == "" {
			return nil, fmt.Errorf("tomlformat: workflow: node %d (%q) has no step", i, node.Name)
		}
	}
	return &w, nil
}

// LoadWorkflow reads and decodes a workflow TOML file from path.
func LoadWorkflow(path string) (*RawWorkflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tomlformat: workflow: %w", err)
	}
	return DecodeWorkflow(data)
}
