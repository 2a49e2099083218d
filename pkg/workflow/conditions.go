// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

// FunctionCall records one invocation of an extension function captured
// during a verification pass: which function, its argument, whether that
// argument is a path (and so needs ValidatePath / permission-level
// judgment), and the source expression it came from (for error messages).
type FunctionCall struct {
	Name       string
	Arg        string
	IsPathArg  bool
	Expression string
}

var resourceIDPattern = regexp.MustCompile(`^[^/]+/[^/]+$`)

// CaptureFunctionCalls evaluates each condition once with stub closures
// that always return true, recording every extension function call made
// along the way. This is how the evaluator learns what a condition
// expression touches without actually touching the filesystem or process
// table — the same capture-then-inspect approach the reference
// interpreter uses (install throwaway closures, run the expression once,
// read back what was called).
func CaptureFunctionCalls(conditions []string) ([]FunctionCall, error) {
	var calls []FunctionCall
	for _, cond := range conditions {
		fns := Functions{
			Exist: func(path string) (bool, error) {
				calls = append(calls, FunctionCall{Name: "Exist", Arg: path, IsPathArg: true, Expression: cond})
				return true, nil
			},
			IsDirectory: func(path string) (bool, error) {
				calls = append(calls, FunctionCall{Name: "IsDirectory", Arg: path, IsPathArg: true, Expression: cond})
				return true, nil
			},
			IsAlive: func(name string) (bool, error) {
				calls = append(calls, FunctionCall{Name: "IsAlive", Arg: name, IsPathArg: false, Expression: cond})
				return true, nil
			},
			IsInstalled: func(id string) (bool, error) {
				calls = append(calls, FunctionCall{Name: "IsInstalled", Arg: id, IsPathArg: false, Expression: cond})
				return true, nil
			},
		}
		if _, err := EvalBool(Context{}, fns, cond); err != nil {
			return nil, fmt.Errorf("workflow: failed to execute expression %q: %w", cond, err)
		}
	}
	return calls, nil
}

// PermissionsFromConditions converts the captured calls in conditions into
// Permission records, one per captured call.
func PermissionsFromConditions(conditions []string) ([]Permission, error) {
	calls, err := CaptureFunctionCalls(conditions)
	if err != nil {
		return nil, err
	}

	perms := make([]Permission, 0, len(calls))
	for _, c := range calls {
		switch c.Name {
		case "Exist", "IsDirectory":
			perms = append(perms, Permission{Key: PermFSRead, Level: PermissionLevelForPath(c.Arg), Targets: []string{c.Arg}})
		case "IsAlive":
			perms = append(perms, Permission{Key: PermProcessQuery, Level: Normal, Targets: []string{c.Arg}})
		case "IsInstalled":
			perms = append(perms, Permission{Key: PermNepInstalled, Level: Normal, Targets: []string{c.Arg}})
		default:
			return nil, fmt.Errorf("workflow: unknown function %q in expression %q", c.Name, c.Expression)
		}
	}
	return perms, nil
}

// VerifyConditions structurally validates every condition expression in
// conditions: argument shape for IsAlive/IsInstalled, ValidatePath for any
// path-typed argument, and that the expression itself parses and
// evaluates to a boolean.
func VerifyConditions(conditions []string, located string) error {
	calls, err := CaptureFunctionCalls(conditions)
	if err != nil {
		return err
	}

	for _, c := range calls {
		switch c.Name {
		case "IsAlive":
			if !strings.HasSuffix(strings.ToLower(c.Arg), ".exe") {
				return fmt.Errorf("workflow: argument of IsAlive should end with '.exe', got %q", c.Arg)
			}
		case "IsInstalled":
			if !resourceIDPattern.MatchString(c.Arg) {
				return fmt.Errorf("workflow: argument of IsInstalled should match 'scope/name', got %q", c.Arg)
			}
		}
		if c.IsPathArg {
			if err := ValidatePath(c.Arg); err != nil {
				return fmt.Errorf("workflow: invalid path argument in expression %q: %w", c.Expression, err)
			}
		}
	}

	for _, cond := range conditions {
		if _, err := EvalBool(Context{Located: located}, liveFunctions(located), cond); err != nil {
			return fmt.Errorf("workflow: failed to validate condition %q: %w", cond, err)
		}
	}
	return nil
}
