// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package mixedfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nep-pkg/nep/pkg/mixedfs"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMixedFSBasicExistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "real.txt"), "x")

	fs := mixedfs.New(ctx, dir)
	require.False(t, fs.Exists("1.txt"))
	require.True(t, fs.Exists("real.txt"))
}

func TestMixedFSExactAddRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), "x")

	fs := mixedfs.New(ctx, dir)
	fs.Add("1.txt", "backup/1.txt")
	fs.Remove(ctx, "config.toml")

	require.True(t, fs.Exists("1.txt"))
	require.False(t, fs.Exists("backup/1.txt"))
	require.False(t, fs.Exists("config.toml"))
}

func TestMixedFSWildcardAddRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/types/mod.rs"), "x")
	writeFile(t, filepath.Join(dir, "src/types/other.rs"), "x")
	writeFile(t, filepath.Join(dir, "src/main.rs"), "x")

	fs := mixedfs.New(ctx, dir)
	fs.Add("c/", "src/types/*.rs")
	fs.Remove(ctx, "src/main.rs")

	require.True(t, fs.Exists("c/mod.rs"))
	require.True(t, fs.Exists("src/types/mod.rs"))
	require.False(t, fs.Exists("src/main.rs"))
}

func TestMixedFSExactRemoveOverridesWildcardAdd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/types/mod.rs"), "x")
	writeFile(t, filepath.Join(dir, "src/types/mixed_fs.rs"), "x")

	fs := mixedfs.New(ctx, dir)
	fs.Add("c/", "src/types/*.rs")
	fs.Remove(ctx, "c/mixed_fs.rs")

	require.True(t, fs.Exists("c/mod.rs"))
	require.False(t, fs.Exists("c/mixed_fs.rs"))
}

func TestMixedFSVariablePrefixedPathsAlwaysExist(t *testing.T) {
	ctx := context.Background()
	fs := mixedfs.New(ctx, t.TempDir())
	require.True(t, fs.Exists("${AppData}/demo/whatever.txt"))
}

func TestMixedFSAddDirectoryFromVariableRoot(t *testing.T) {
	ctx := context.Background()
	fs := mixedfs.New(ctx, t.TempDir())
	fs.Add("233", "${AppData}/Edgeless/nep/")
	require.True(t, fs.Exists("233/whats.ts"))
}

func TestMixedFSRemoveOfNonexistentTargetIsANoop(t *testing.T) {
	ctx := context.Background()
	fs := mixedfs.New(ctx, t.TempDir())
	fs.Remove(ctx, "nope.txt")
	require.False(t, fs.Exists("nope.txt"))
}

func TestMixedFSWildcardRemoveExpandsAgainstDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "logs/1.log"), "x")
	writeFile(t, filepath.Join(dir, "logs/2.log"), "x")
	writeFile(t, filepath.Join(dir, "logs/keep.txt"), "x")

	fs := mixedfs.New(ctx, dir)
	fs.Remove(ctx, "logs/*.log")

	require.False(t, fs.Exists("logs/1.log"))
	require.False(t, fs.Exists("logs/2.log"))
	require.True(t, fs.Exists("logs/keep.txt"))
}

// After add(p, ""); remove(p), exists(p) must return the disk truth,
// whether or not p is really there.
func TestMixedFSAddThenRemoveFallsBackToDiskTruth(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "on-disk.txt"), "x")

	fs := mixedfs.New(ctx, dir)
	for _, p := range []string{"on-disk.txt", "virtual.txt"} {
		fs.Add(p, "")
	}
	fs.Remove(ctx, "on-disk.txt")
	fs.Remove(ctx, "virtual.txt")

	require.True(t, fs.Exists("on-disk.txt"))
	require.False(t, fs.Exists("virtual.txt"))
}
