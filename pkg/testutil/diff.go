// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

var spewConfig = spew.ConfigState{ //nolint:exhaustivestruct
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// DumpArchiveFull renders every header and content body of a tar stream (the
// codec used for both the outer and inner package archives) for
// byte-for-byte comparison in tests.
func DumpArchiveFull(r io.Reader) (string, error) {
	ret := new(strings.Builder)

	tarReader := tar.NewReader(r)
	for {
		header, err := tarReader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}

		if _, err := fmt.Fprintf(ret, "tarHeader = %s", spewConfig.Sdump(header)); err != nil {
			return "", err
		}

		content, err := io.ReadAll(tarReader)
		if err != nil {
			return "", err
		}
		if _, err := fmt.Fprintf(ret, "tarContent =%s", spewConfig.Sdump(content)); err != nil {
			return "", err
		}
	}

	return ret.String(), nil
}

// DumpArchiveListing renders a short `ls -l`-style table of a tar stream, for
// a fast-failing, readable first comparison before DumpArchiveFull.
func DumpArchiveListing(r io.Reader) (string, error) {
	ret := new(strings.Builder)

	table := tabwriter.NewWriter(
		ret, // output
		0,   // minwidth
		1,   // tabwidth
		1,   // padding
		' ', // padchar
		0)   // flags
	tarReader := tar.NewReader(r)
	for {
		header, err := tarReader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}

		if _, err := fmt.Fprintln(table, strings.Join([]string{
			"",
			header.FileInfo().Mode().String(),
			fmt.Sprintf("%d=%q", header.Uid, header.Uname),
			fmt.Sprintf("%d=%q", header.Gid, header.Gname),
			fmt.Sprintf("% 10d", header.Size),
			header.Name,
		}, "\t")); err != nil {
			return "", err
		}

		if _, err := io.ReadAll(tarReader); err != nil {
			return "", err
		}
	}
	if err := table.Flush(); err != nil {
		return "", err
	}

	return ret.String(), nil
}

// unifiedDiff renders a unified diff between exp and act with the given
// amount of context, for use in test failure messages.
func unifiedDiff(exp, act string, context int) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{ //nolint:exhaustivestruct
		A:        difflib.SplitLines(exp),
		B:        difflib.SplitLines(act),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  context,
	})
	return diff
}

// AssertEqualArchives compares two tar streams: first their listings (fast,
// readable), then a full header+content dump if the listings match.
func AssertEqualArchives(t *testing.T, exp, act io.Reader) bool {
	t.Helper()

	var expBuf, actBuf strings.Builder
	expStr, err := DumpArchiveListing(io.TeeReader(exp, &expBuf))
	if err != nil {
		t.Errorf("error dumping expected archive listing: %v", err)
		return false
	}
	actStr, err := DumpArchiveListing(io.TeeReader(act, &actBuf))
	if err != nil {
		t.Errorf("error dumping actual archive listing: %v", err)
		return false
	}
	if expStr != actStr {
		t.Errorf("Listing diff:\n%s", unifiedDiff(expStr, actStr, 1))
		return false
	}

	expFull, err1 := DumpArchiveFull(strings.NewReader(expBuf.String()))
	actFull, err2 := DumpArchiveFull(strings.NewReader(actBuf.String()))
	if err := errors.Join(err1, err2); err != nil {
		t.Errorf("error dumping archives: %v", err)
		return false
	}
	if expFull != actFull {
		t.Errorf("Content diff:\n%s", unifiedDiff(expFull, actFull, 3))
		return false
	}
	return true
}

// AssertEqualValues spew-dumps exp and act (manifests, decoded TOML, parsed
// workflows, and the like) and fails with a unified diff if they differ.
func AssertEqualValues(t *testing.T, exp, act interface{}) bool {
	t.Helper()

	expStr := spewConfig.Sdump(exp)
	actStr := spewConfig.Sdump(act)
	if expStr == actStr {
		return true
	}
	t.Errorf("value diff:\n%s", unifiedDiff(expStr, actStr, 3))
	return false
}
