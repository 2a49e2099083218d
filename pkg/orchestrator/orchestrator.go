// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the install/update/uninstall/pack/clean
// state machines that drive the unpack pipeline, the workflow
// interpreter, and the installed database against one another. It is the
// only package that calls all three.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/nep-pkg/nep/pkg/archive"
	"github.com/nep-pkg/nep/pkg/blake3hash"
	"github.com/nep-pkg/nep/pkg/flags"
	"github.com/nep-pkg/nep/pkg/installdb"
	"github.com/nep-pkg/nep/pkg/keystore"
	"github.com/nep-pkg/nep/pkg/mirror"
	"github.com/nep-pkg/nep/pkg/mixedfs"
	"github.com/nep-pkg/nep/pkg/pkgformat"
	"github.com/nep-pkg/nep/pkg/semver"
	"github.com/nep-pkg/nep/pkg/tomlformat"
	"github.com/nep-pkg/nep/pkg/unpack"
	"github.com/nep-pkg/nep/pkg/workflow"

	"github.com/google/uuid"
)

// RegistryReader resolves an optional software.registry_entry id to a
// legacy uninstaller command line. It's an external collaborator: the
// registry itself (Windows registry, a package database, whatever the
// host platform uses) lives outside this module.
type RegistryReader interface {
	UninstallString(registryEntryID string) (string, bool, error)
}

// Confirmer prompts the user for yes/no confirmation before a destructive
// or surprising action (author-change reinstall, clean's garbage list).
// An external collaborator; nil means "assume yes", matching --yes/--qa
// non-interactive runs.
type Confirmer func(prompt string) bool

// Orchestrator ties the installed database, the unpack pipeline, the
// workflow interpreter, and the mirror resolver together.
type Orchestrator struct {
	DB       *installdb.DB
	Keys     keystore.Store
	Mirror   mirror.Resolver
	Registry RegistryReader
	Confirm  Confirmer

	// ScratchRoot is where downloaded packages and unpack scratch
	// directories are created.
	ScratchRoot string
}

func (o *Orchestrator) confirm(prompt string) bool {
	if o.Confirm == nil {
		return true
	}
	return o.Confirm(prompt)
}

func (o *Orchestrator) unpackOpts() unpack.Options {
	f := flags.Current()
	return unpack.Options{
		VerifySignature: !f.Offline,
		Keys:            o.Keys,
		ScratchRoot:     o.ScratchRoot,
		Debug:           f.Debug,
		Offline:         f.Offline,
	}
}

func cleanup(ctx context.Context, dir string) {
	if flags.Current().Debug {
		dlog.Debugf(ctx, "orchestrator: retaining %s (debug mode)", dir)
		return
	}
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		dlog.Warnf(ctx, "orchestrator: failed to remove %s: %v", dir, err)
	}
}

// resolveInput turns an install/update input (a local file/dir path, or a
// "scope/name[@version]" matcher resolved through the mirror) into a local
// file or directory path the unpack pipeline can consume.
func (o *Orchestrator) resolveInput(ctx context.Context, input string) (path string, isScratch bool, err error) {
	if _, statErr := os.Stat(input); statErr == nil {
		return input, false, nil
	}

	if o.Mirror == nil {
		return "", false, fmt.Errorf("orchestrator: %q is not a local path and no mirror is configured", input)
	}
	if flags.Current().Offline {
		return "", false, fmt.Errorf("orchestrator: %q is not a local path and offline mode forbids mirror resolution", input)
	}

	matcher, err := parseMatcher(input)
	if err != nil {
		return "", false, err
	}
	entry, err := o.Mirror.Resolve(ctx, matcher)
	if err != nil {
		return "", false, fmt.Errorf("orchestrator: resolve %q: %w", input, err)
	}

	dst, err := downloadToScratch(ctx, entry.URL, o.ScratchRoot)
	if err != nil {
		return "", false, fmt.Errorf("orchestrator: download %q: %w", entry.URL, err)
	}
	return dst, true, nil
}

// manifestScope returns a package's vendor namespace, defaulting to
// "unscoped" when package.toml carries no [software] table at all.
func manifestScope(m *tomlformat.PackageManifest) string {
	if m.Software != nil && m.Software.Scope != "" {
		return m.Software.Scope
	}
	return "unscoped"
}

// downloadToScratch fetches url into a fresh subdirectory of root, the
// resolved-input counterpart of step_download.go's Download step: no digest
// is known in advance here, so the unpack pipeline's own signature
// verification is what vouches for the result.
func downloadToScratch(ctx context.Context, url, root string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "nep-fetch-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}

	name := filepath.Base(url)
	if name == "" || name == "." || name == "/" {
		name = "package.nep"
	}
	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

// parseMatcher parses "scope/name" or "scope/name@version" into a
// mirror.Matcher.
func parseMatcher(s string) (mirror.Matcher, error) {
	scopeName, version, _ := strings.Cut(s, "@")
	scope, name, ok := strings.Cut(scopeName, "/")
	if !ok || scope == "" || name == "" {
		return mirror.Matcher{}, fmt.Errorf("orchestrator: %q is not a local path and not a scope/name matcher", s)
	}
	return mirror.Matcher{Scope: scope, Name: name, VersionReq: version}, nil
}

// Install unpacks a package and deploys it into the installed database.
func (o *Orchestrator) Install(ctx context.Context, input string) error {
	src, isScratch, err := o.resolveInput(ctx, input)
	if err != nil {
		return err
	}
	if isScratch {
		defer cleanup(ctx, filepath.Dir(src))
	}

	res, err := o.unpackOne(ctx, src)
	if err != nil {
		return err
	}
	defer cleanup(ctx, res.ScratchDir)

	scope := manifestScope(res.Manifest)
	name := res.Manifest.Package.Name

	if _, err := o.DB.InfoLocal(scope, name); err == nil {
		return fmt.Errorf("orchestrator: %s/%s is already installed", scope, name)
	}

	payloadDir := filepath.Join(res.InnerDir, name)
	if err := o.runExpandIfPresent(ctx, res.InnerDir, payloadDir); err != nil {
		return err
	}

	if err := o.DB.MovePayload(scope, name, payloadDir); err != nil {
		return err
	}
	installDir := o.DB.InstallDir(scope, name)

	setupPath := filepath.Join(res.InnerDir, "workflows", "setup.toml")
	if err := o.runWorkflow(ctx, setupPath, installDir, scope); err != nil {
		return fmt.Errorf("orchestrator: install: setup.toml: %w", err)
	}

	if err := o.DB.MoveContext(scope, name, res.InnerDir); err != nil {
		return err
	}
	if _, err := pkgformat.InstalledValidator(installDir); err != nil {
		return fmt.Errorf("orchestrator: install: %w", err)
	}
	return nil
}

// Update replaces an installed package with a newer one.
func (o *Orchestrator) Update(ctx context.Context, input string) error {
	src, isScratch, err := o.resolveInput(ctx, input)
	if err != nil {
		return err
	}
	if isScratch {
		defer cleanup(ctx, filepath.Dir(src))
	}

	fresh, err := o.unpackOne(ctx, src)
	if err != nil {
		return err
	}
	defer cleanup(ctx, fresh.ScratchDir)

	scope := manifestScope(fresh.Manifest)
	name := fresh.Manifest.Package.Name

	local, err := o.DB.InfoLocal(scope, name)
	if err != nil {
		return fmt.Errorf("orchestrator: update: %s/%s is not installed: %w", scope, name, err)
	}

	localVer, err := semver.Parse(local.Version)
	if err != nil {
		return fmt.Errorf("orchestrator: update: local version: %w", err)
	}
	freshVer, err := semver.Parse(fresh.Manifest.Package.Version)
	if err != nil {
		return fmt.Errorf("orchestrator: update: fresh version: %w", err)
	}
	if localVer.GreaterOrEqual(freshVer) {
		return fmt.Errorf("orchestrator: update: %s/%s has been up to date", scope, name)
	}

	if !authorsEqual(local.Manifest, fresh.Manifest) {
		if !o.confirm(fmt.Sprintf("%s/%s: package author changed, reinstall instead of update?", scope, name)) {
			return fmt.Errorf("orchestrator: update: author changed, user declined reinstall")
		}
		if err := o.Uninstall(ctx, scope, name); err != nil {
			return fmt.Errorf("orchestrator: update: author-change uninstall: %w", err)
		}
		return o.Install(ctx, src)
	}

	installDir := o.DB.InstallDir(scope, name)
	payloadDir := filepath.Join(fresh.InnerDir, name)
	if err := o.runExpandIfPresent(ctx, fresh.InnerDir, payloadDir); err != nil {
		return err
	}

	localRemovePath := filepath.Join(local.ContextDir, "workflows", "remove.toml")
	freshHasUpdate := fileExists(filepath.Join(fresh.InnerDir, "workflows", "update.toml"))
	if fileExists(localRemovePath) && !freshHasUpdate {
		if err := o.runWorkflow(ctx, localRemovePath, installDir, scope); err != nil {
			dlog.Warnf(ctx, "orchestrator: update: local remove.toml: %v", err)
		}
	}

	localSetupPath := filepath.Join(local.ContextDir, "workflows", "setup.toml")
	o.reverseWorkflow(ctx, localSetupPath, installDir, scope)

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("orchestrator: update: %w", err)
	}
	if err := o.DB.MovePayload(scope, name, payloadDir); err != nil {
		return err
	}

	runPath := filepath.Join(fresh.InnerDir, "workflows", "update.toml")
	if !fileExists(runPath) {
		runPath = filepath.Join(fresh.InnerDir, "workflows", "setup.toml")
	}
	if err := o.runWorkflow(ctx, runPath, installDir, scope); err != nil {
		return fmt.Errorf("orchestrator: update: %w", err)
	}

	if err := o.DB.MoveContext(scope, name, fresh.InnerDir); err != nil {
		return err
	}
	if _, err := pkgformat.InstalledValidator(installDir); err != nil {
		return fmt.Errorf("orchestrator: update: %w", err)
	}
	return nil
}

// Uninstall removes an installed package, running its remove workflow and
// the reverse of its setup workflow along the way.
func (o *Orchestrator) Uninstall(ctx context.Context, scope, name string) error {
	local, err := o.DB.InfoLocal(scope, name)
	if err != nil {
		return fmt.Errorf("orchestrator: uninstall: %w", err)
	}
	installDir := o.DB.InstallDir(scope, name)

	if local.Manifest.Software != nil && local.Manifest.Software.RegistryID != "" && o.Registry != nil {
		cmd, ok, err := o.Registry.UninstallString(local.Manifest.Software.RegistryID)
		if err != nil {
			dlog.Warnf(ctx, "orchestrator: uninstall: registry lookup: %v", err)
		} else if ok {
			step := &workflow.ExecuteStep{Command: cmd}
			if _, err := step.Run(ctx, workflow.Context{Located: installDir, Pkg: scope + "/" + name}); err != nil {
				dlog.Warnf(ctx, "orchestrator: uninstall: registry uninstall command: %v", err)
			}
		}
	}

	removePath := filepath.Join(local.ContextDir, "workflows", "remove.toml")
	if fileExists(removePath) {
		if err := o.runWorkflow(ctx, removePath, installDir, scope); err != nil {
			dlog.Warnf(ctx, "orchestrator: uninstall: remove.toml: %v", err)
		}
	}

	setupPath := filepath.Join(local.ContextDir, "workflows", "setup.toml")
	o.reverseWorkflow(ctx, setupPath, installDir, scope)

	if err := o.DB.RemoveInstall(scope, name); err != nil {
		dlog.Warnf(ctx, "orchestrator: uninstall: %v", err)
		o.retryRemoveAfterKill(ctx, scope, name, local, installDir, setupPath)
	}
	return nil
}

// retryRemoveAfterKill is uninstall's last resort: kill
// every ".exe" name the setup workflow's manifest and main_program mention,
// sleep 3s, retry the directory removal once.
func (o *Orchestrator) retryRemoveAfterKill(ctx context.Context, scope, name string, local *installdb.Meta, installDir, setupPath string) {
	names := exeNamesFromWorkflow(ctx, setupPath, installDir)
	if local.Manifest.Software != nil && local.Manifest.Software.MainProgram != "" {
		names = append(names, filepath.Base(local.Manifest.Software.MainProgram))
	}
	for _, n := range dedupe(names) {
		step := &workflow.KillStep{Target: n}
		if _, err := step.Run(ctx, workflow.Context{Located: installDir}); err != nil {
			dlog.Warnf(ctx, "orchestrator: uninstall: kill %q: %v", n, err)
		}
	}
	time.Sleep(3 * time.Second)
	if err := o.DB.RemoveInstall(scope, name); err != nil {
		dlog.Errorf(ctx, "orchestrator: uninstall: %s/%s: could not remove %s after retry, manual deletion required: %v",
			scope, name, installDir, err)
	}
}

// exeNamesFromWorkflow loads the workflow at path, replays its steps'
// get_manifest declarations into a MixedFS the same way Verify does, and
// returns the basenames of every declared path ending in ".exe" — the
// "setup.toml's manifest" half of the kill-then-retry set.
// An unloadable workflow contributes nothing and a node whose GetManifest
// fails is skipped; this is a best-effort retry, not a hard requirement.
func exeNamesFromWorkflow(ctx context.Context, path, located string) []string {
	wf, err := workflow.Load(path)
	if err != nil {
		dlog.Warnf(ctx, "orchestrator: uninstall: %s: %v", path, err)
		return nil
	}
	fs := mixedfs.New(ctx, located)
	var names []string
	for _, n := range wf.Nodes {
		if err := n.Body.GetManifest(ctx, fs); err != nil {
			dlog.Warnf(ctx, "orchestrator: uninstall: %s: node %q: %v", path, n.Header.Name, err)
			continue
		}
	}
	for _, p := range fs.AddedPaths() {
		if strings.EqualFold(filepath.Ext(p), ".exe") {
			names = append(names, filepath.Base(p))
		}
	}
	return names
}

// Clean removes orphaned app directories and stray PATH shims.
func (o *Orchestrator) Clean(ctx context.Context) error {
	metas, err := o.DB.List()
	if err != nil {
		return fmt.Errorf("orchestrator: clean: %w", err)
	}
	installed := make(map[string]bool, len(metas))
	for _, m := range metas {
		installed[strings.ToLower(m.Scope+"/"+m.Name)] = true
	}

	garbageDirs, err := o.findGarbageAppDirs(installed)
	if err != nil {
		return err
	}
	legalShims := o.legalShimNames(ctx, metas)
	garbageShims, err := o.findGarbageShims(legalShims)
	if err != nil {
		return err
	}

	if len(garbageDirs) == 0 && len(garbageShims) == 0 {
		dlog.Infof(ctx, "clean: nothing to do")
		return nil
	}
	if !o.confirm(fmt.Sprintf("remove %d garbage director(ies) and %d garbage shim(s)?", len(garbageDirs), len(garbageShims))) {
		return nil
	}
	for _, d := range garbageDirs {
		if err := os.RemoveAll(d); err != nil {
			dlog.Warnf(ctx, "clean: %s: %v", d, err)
		}
	}
	for _, f := range garbageShims {
		if err := os.Remove(f); err != nil {
			dlog.Warnf(ctx, "clean: %s: %v", f, err)
		}
	}
	return nil
}

func (o *Orchestrator) findGarbageAppDirs(installed map[string]bool) ([]string, error) {
	var garbage []string
	scopes, err := os.ReadDir(o.DB.AppsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("orchestrator: clean: %w", err)
	}
	for _, scopeEntry := range scopes {
		if !scopeEntry.IsDir() {
			continue
		}
		scopeDir := o.DB.ScopeDir(scopeEntry.Name())
		names, err := os.ReadDir(scopeDir)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: clean: %w", err)
		}
		if len(names) == 0 {
			garbage = append(garbage, scopeDir)
			continue
		}
		for _, nameEntry := range names {
			if !nameEntry.IsDir() {
				continue
			}
			key := strings.ToLower(scopeEntry.Name() + "/" + nameEntry.Name())
			if !installed[key] {
				garbage = append(garbage, filepath.Join(scopeDir, nameEntry.Name()))
			}
		}
	}
	return garbage, nil
}

// legalShimNames walks each installed package's setup.toml and collects
// the Path-step shim basenames it's allowed to have in bin/.
func (o *Orchestrator) legalShimNames(ctx context.Context, metas []installdb.Meta) map[string]bool {
	legal := make(map[string]bool)
	for _, m := range metas {
		setupPath := filepath.Join(m.ContextDir, "workflows", "setup.toml")
		wf, err := workflow.Load(setupPath)
		if err != nil {
			dlog.Warnf(ctx, "clean: %s: %v", setupPath, err)
			continue
		}
		for _, n := range wf.Nodes {
			p, ok := n.Body.(*workflow.PathStep)
			if !ok {
				continue
			}
			base := strings.TrimSuffix(filepath.Base(p.Record), filepath.Ext(p.Record))
			legal[base+".cmd"] = true
			legal[m.Scope+"-"+base+".cmd"] = true
		}
	}
	return legal
}

func (o *Orchestrator) findGarbageShims(legal map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(o.DB.BinDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("orchestrator: clean: %w", err)
	}
	var garbage []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".cmd" {
			continue
		}
		if !legal[e.Name()] {
			garbage = append(garbage, filepath.Join(o.DB.BinDir(), e.Name()))
		}
	}
	return garbage, nil
}

// Pack assembles a source directory into a distributable .nep file.
func (o *Orchestrator) Pack(ctx context.Context, srcDir, outFile string) error {
	manifest, err := tomlformat.LoadPackageManifest(filepath.Join(srcDir, "package.toml"))
	if err != nil {
		return fmt.Errorf("orchestrator: pack: %w", err)
	}
	if err := validatePackSource(srcDir, manifest); err != nil {
		return fmt.Errorf("orchestrator: pack: %w", err)
	}
	signerEmail, err := manifest.Signer()
	if err != nil {
		return fmt.Errorf("orchestrator: pack: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(outFile), filepath.Ext(outFile))
	return o.packTo(ctx, srcDir, stem, signerEmail, outFile)
}

// validatePackSource checks the three things a source tree must have before
// it can be packed: package.toml, a workflows/ directory,
// and a payload directory whose name matches the package's own name.
func validatePackSource(srcDir string, manifest *tomlformat.PackageManifest) error {
	if !fileExists(filepath.Join(srcDir, "package.toml")) {
		return fmt.Errorf("%s: missing package.toml", srcDir)
	}
	if info, err := os.Stat(filepath.Join(srcDir, "workflows")); err != nil || !info.IsDir() {
		return fmt.Errorf("%s: missing workflows/ directory", srcDir)
	}
	payloadDir := filepath.Join(srcDir, manifest.Package.Name)
	if info, err := os.Stat(payloadDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s: missing payload directory %q matching package name", srcDir, manifest.Package.Name)
	}
	return pkgformat.MainProgramValidator(payloadDir, manifest)
}

// packTo assembles the outer .nep archive from srcDir: the inner tree
// (package.toml, workflows/, payload) is zstd-compressed to "<stem>.tar.zst",
// optionally BLAKE3/Ed25519 signed, and both that member and the resulting
// signature.toml are tarred together into outFile.
func (o *Orchestrator) packTo(ctx context.Context, srcDir, stem, signerEmail, outFile string) (err error) {
	scratch, err := os.MkdirTemp(o.ScratchRoot, "nep-pack-*")
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	defer cleanup(ctx, scratch)

	innerTarPath := filepath.Join(scratch, stem+".tar")
	if err := archive.PackTar(srcDir, innerTarPath); err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	innerArchivePath := filepath.Join(scratch, stem+".tar.zst")
	if err := archive.CompressZstdFile(innerTarPath, innerArchivePath); err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	sig := &tomlformat.SignatureManifest{RawNameStem: stem, Signer: signerEmail}
	if o.Keys != nil {
		priv, err := o.Keys.PrivateKey()
		if err != nil {
			dlog.Warnf(ctx, "pack: no private key available, packing unsigned: %v", err)
		} else {
			sigB64, err := blake3hash.SignFile(innerArchivePath, priv)
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}
			sig.Signature = sigB64
		}
	}

	sigData, err := tomlformat.EncodeSignatureManifest(sig)
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	sigPath := filepath.Join(scratch, "signature.toml")
	if err := os.WriteFile(sigPath, sigData, 0o644); err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	outerDir := filepath.Join(scratch, "outer")
	if err := os.MkdirAll(outerDir, 0o755); err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	if err := os.Rename(sigPath, filepath.Join(outerDir, "signature.toml")); err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	if err := os.Rename(innerArchivePath, filepath.Join(outerDir, stem+".tar.zst")); err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	if err := archive.PackTar(outerDir, outFile); err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	return nil
}

// Meta parses and verifies a workflow, then returns its generalized
// permission table without executing anything.
func (o *Orchestrator) Meta(ctx context.Context, workflowPath, located string) ([]workflow.Permission, error) {
	wf, err := workflow.Load(workflowPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: meta: %w", err)
	}
	if err := wf.Verify(ctx, located); err != nil {
		return nil, fmt.Errorf("orchestrator: meta: %w", err)
	}
	return wf.GeneralizePermissions()
}

func (o *Orchestrator) unpackOne(ctx context.Context, src string) (*unpack.Result, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if info.IsDir() {
		return unpack.FromSourceDir(ctx, src, o.unpackOpts())
	}
	return unpack.FromFile(ctx, src, o.unpackOpts())
}

func (o *Orchestrator) runExpandIfPresent(ctx context.Context, innerDir, payloadDir string) error {
	expandPath := filepath.Join(innerDir, "workflows", "expand.toml")
	if !fileExists(expandPath) {
		return nil
	}
	if err := o.runWorkflow(ctx, expandPath, payloadDir, ""); err != nil {
		return fmt.Errorf("orchestrator: expand.toml: %w", err)
	}
	return os.Remove(expandPath)
}

func (o *Orchestrator) runWorkflow(ctx context.Context, path, located, scope string) error {
	wf, err := workflow.Load(path)
	if err != nil {
		return err
	}
	if err := wf.Verify(ctx, located); err != nil {
		return err
	}
	wf.BindPathSteps(o.DB.BinDir(), scope)
	return wf.Execute(ctx, workflow.Context{Located: located}, flags.Current().Strict)
}

func (o *Orchestrator) reverseWorkflow(ctx context.Context, path, located, scope string) {
	if !fileExists(path) {
		return
	}
	wf, err := workflow.Load(path)
	if err != nil {
		dlog.Warnf(ctx, "orchestrator: reverse: %s: %v", path, err)
		return
	}
	wf.BindPathSteps(o.DB.BinDir(), scope)
	wf.ReverseExecute(ctx, workflow.Context{Located: located})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	var out []string
	for _, s := range ss {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func authorsEqual(local, fresh *tomlformat.PackageManifest) bool {
	if len(local.Package.Authors) == 0 || len(fresh.Package.Authors) == 0 {
		return false
	}
	return local.Package.Authors[0].Equal(fresh.Package.Authors[0])
}

