// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nep-pkg/nep/pkg/semver"
)

// Package is one catalog row: a distributable version of a (scope, name)
// pair, plus the file name the mirror serves it under.
type Package struct {
	Scope      string
	Name       string
	Version    string
	FileName   string
	HashBlake3 string
}

// Catalog is an in-memory Resolver over a flat package list, the shape a
// mirror index decodes to once the external HTTP client has fetched and
// cached it. Lookup keys are case-insensitive, but the canonical casing
// recorded in the catalog is what Resolve hands back.
type Catalog struct {
	// URLTemplate turns a catalog row into a download URL. It must
	// contain all three of "{scope}", "{software}", and "{file_name}".
	URLTemplate string
	Packages    []Package
}

// FillURLTemplate substitutes scope, software, and fileName into template.
// A template missing any of the three fields is malformed: a mirror that
// doesn't encode all three can serve two different packages from one URL.
func FillURLTemplate(template, scope, software, fileName string) (string, error) {
	res := template
	for field, value := range map[string]string{
		"{scope}":     scope,
		"{software}":  software,
		"{file_name}": fileName,
	} {
		if !strings.Contains(res, field) {
			return "", fmt.Errorf("mirror: invalid url template %q: missing field %q", template, field)
		}
		res = strings.ReplaceAll(res, field, value)
	}
	return res, nil
}

func (c *Catalog) entryFor(p Package) (Entry, error) {
	url, err := FillURLTemplate(c.URLTemplate, p.Scope, p.Name, p.FileName)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Scope:      p.Scope,
		Name:       p.Name,
		Version:    p.Version,
		URL:        url,
		HashBlake3: p.HashBlake3,
	}, nil
}

// Resolve filters the catalog for m's (scope, name) pair and picks the
// matching version: the exact VersionReq when one is given, the highest
// available version otherwise.
func (c *Catalog) Resolve(_ context.Context, m Matcher) (Entry, error) {
	var (
		best    *Package
		bestVer semver.Version
	)
	for i := range c.Packages {
		p := &c.Packages[i]
		if !strings.EqualFold(p.Scope, m.Scope) || !strings.EqualFold(p.Name, m.Name) {
			continue
		}
		if m.VersionReq != "" {
			if p.Version == m.VersionReq {
				return c.entryFor(*p)
			}
			continue
		}
		v, err := semver.Parse(p.Version)
		if err != nil {
			return Entry{}, fmt.Errorf("mirror: catalog entry %s/%s: %w", p.Scope, p.Name, err)
		}
		if best == nil || v.Greater(bestVer) {
			best, bestVer = p, v
		}
	}
	if best == nil {
		return Entry{}, fmt.Errorf("mirror: %s/%s@%s: %w", m.Scope, m.Name, m.VersionReq, ErrNoMatch)
	}
	return c.entryFor(*best)
}

// Upgrades returns, for each installed matcher whose VersionReq records
// the locally installed version, the catalog entry of a strictly newer
// version, if one exists.
func (c *Catalog) Upgrades(ctx context.Context, installed []Matcher) ([]Entry, error) {
	var out []Entry
	for _, m := range installed {
		localVer, err := semver.Parse(m.VersionReq)
		if err != nil {
			return nil, fmt.Errorf("mirror: installed %s/%s: %w", m.Scope, m.Name, err)
		}
		entry, err := c.Resolve(ctx, Matcher{Scope: m.Scope, Name: m.Name})
		if err != nil {
			if errors.Is(err, ErrNoMatch) {
				continue
			}
			return nil, err
		}
		freshVer, err := semver.Parse(entry.Version)
		if err != nil {
			return nil, err
		}
		if freshVer.Greater(localVer) {
			out = append(out, entry)
		}
	}
	return out, nil
}
