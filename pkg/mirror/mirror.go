// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package mirror is the read-only catalog resolver interface the
// orchestrator consumes. The HTTP client, the on-disk index
// cache format, and mirror add/update/remove/list management are external
// collaborators — this package only defines what the
// orchestrator needs in order to turn a package matcher into a
// downloadable URL.
package mirror

import (
	"context"
	"errors"
)

// ErrNoMatch is returned by Resolve when no catalog entry satisfies a
// Matcher.
var ErrNoMatch = errors.New("mirror: no matching package entry")

// Matcher selects a catalog entry: Scope and Name are required and
// case-insensitive; VersionReq is an optional version string ("" means
// "latest"), left as an opaque string since its matching grammar (exact,
// range, "latest") belongs to the external mirror client, not the core.
type Matcher struct {
	Scope      string
	Name       string
	VersionReq string
}

// Entry is the catalog information for one package: its direct download
// URL and the BLAKE3 digest the mirror's index recorded for it. The
// orchestrator's Install fetches URL and does not compare the download
// against HashBlake3; the unpack pipeline's signature check is what
// verifies the package.
type Entry struct {
	Scope      string
	Name       string
	Version    string
	URL        string
	HashBlake3 string
}

// Resolver is the read interface the core consumes. A full
// mirror client — index fetching, caching, the add/update/remove/list CLI
// verbs — lives outside this module; any implementation of Resolver can be
// plugged into the orchestrator.
type Resolver interface {
	// Resolve turns m into a concrete catalog Entry, or ErrNoMatch if
	// nothing in the configured mirrors satisfies it.
	Resolve(ctx context.Context, m Matcher) (Entry, error)

	// Upgrades lists every installed package for which a newer version is
	// available, the read side of the `upgrade` CLI verb.
	Upgrades(ctx context.Context, installed []Matcher) ([]Entry, error)
}
