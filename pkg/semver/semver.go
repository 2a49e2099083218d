// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package semver implements nep's extended four-part version number,
// M.m.p.r, where the trailing reserved field only breaks ties between
// otherwise-equal major.minor.patch triples.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is an extended semantic version: the usual major.minor.patch
// triple, plus a reserved field compared numerically only once the
// triple compares equal.
type Version struct {
	Major, Minor, Patch, Reserved uint64
}

// New builds a Version directly from its four numeric fields.
func New(major, minor, patch, reserved uint64) Version {
	return Version{Major: major, Minor: minor, Patch: patch, Reserved: reserved}
}

// Parse decodes a four-part dotted version string such as "1.2.3.4". All
// four fields are required and must each be a non-negative integer.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Version{}, fmt.Errorf("semver: %q is not a four-part version (want M.m.p.r)", s)
	}

	nums := make([]uint64, 4)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("semver: %q is not a four-part version: %w", s, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Reserved: nums[3]}, nil
}

// String renders the version back to its dotted four-part form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Reserved)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. The major.minor.patch triple is compared first; Reserved is only
// consulted when that triple is equal.
func (v Version) Compare(other Version) int {
	if c := cmpUint64(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmpUint64(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmpUint64(v.Patch, other.Patch); c != 0 {
		return c
	}
	return cmpUint64(v.Reserved, other.Reserved)
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Version) Equal(other Version) bool      { return v.Compare(other) == 0 }
func (v Version) Less(other Version) bool       { return v.Compare(other) < 0 }
func (v Version) LessOrEqual(other Version) bool { return v.Compare(other) <= 0 }
func (v Version) Greater(other Version) bool    { return v.Compare(other) > 0 }
func (v Version) GreaterOrEqual(other Version) bool {
	return v.Compare(other) >= 0
}
