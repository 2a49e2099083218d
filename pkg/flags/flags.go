// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package flags holds the process-wide flag table: a
// small set of booleans set once from the CLI/environment at startup and
// read everywhere else in the core without threading a config value through
// every call. Modeled on pkg/reproducible.Now()'s sync.Once singleton.
package flags

import "sync"

// Table is the process-wide flag set: {debug, confirm, strict,
// offline, qa, no_warning}.
type Table struct {
	Debug     bool
	Confirm   bool
	Strict    bool
	Offline   bool
	QA        bool
	NoWarning bool
}

//nolint:gochecknoglobals // process-wide by design
var (
	setOnce sync.Once
	current Table
)

// Set installs the process-wide flag table. It has effect only the first
// time it's called; later calls are no-ops, matching the "set once from
// CLI/environment" invariant — callers that need a different table for an
// isolated test should use WithTable instead of calling Set twice.
func Set(t Table) {
	setOnce.Do(func() {
		current = t
	})
}

// Current returns the process-wide flag table. Before the first Set call,
// it returns the zero Table (every flag false).
func Current() Table {
	return current
}

// WithTable runs fn with the process-wide table temporarily replaced by t,
// then restores it. It bypasses the sync.Once latch, so it's for tests only:
// production code calls Set exactly once at startup.
func WithTable(t Table, fn func()) {
	saved := current
	current = t
	defer func() { current = saved }()
	fn()
}
