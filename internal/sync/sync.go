package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gocortexio/gcgit/internal/client"
	"github.com/gocortexio/gcgit/internal/config"
	"github.com/gocortexio/gcgit/internal/gitrepo"
	"github.com/gocortexio/gcgit/internal/lock"
	"github.com/gocortexio/gcgit/internal/logger"
	"github.com/gocortexio/gcgit/internal/modules"
	"github.com/gocortexio/gcgit/internal/object"
	"github.com/gocortexio/gcgit/internal/store"
	"github.com/gocortexio/gcgit/internal/versions"
)

// Manager orchestrates instance operations against the module registry.
type Manager struct {
	registry *modules.Registry
	cfg      *config.Manager
}

// NewManager creates a sync manager.
func NewManager(registry *modules.Registry) *Manager {
	return &Manager{
		registry: registry,
		cfg:      config.NewManager(),
	}
}

// PullResult reports what one pull cycle did.
type PullResult struct {
	// PulledFiles are instance-relative paths written this cycle.
	PulledFiles []string

	// CountsByType maps content type name to objects pulled.
	CountsByType map[string]int

	// Warnings lists content types that failed; the pull continued past them.
	Warnings []string

	// Committed reports whether an auto-commit was recorded.
	Committed     bool
	ChangedCount  int
	CommitMessage string
}

// Pull fetches every content type of one module, writes the canonical files
// and auto-commits when Git detects staged changes. The instance lock is
// held for the whole cycle and released on all paths.
func (m *Manager) Pull(ctx context.Context, instanceName, moduleID string) (*PullResult, error) {
	mod := m.registry.Get(moduleID)
	if mod == nil {
		return nil, fmt.Errorf("unknown module: %s", moduleID)
	}

	lk, err := lock.Acquire(instanceName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lk.Release(); err != nil {
			logger.Warnf("Failed to release instance lock: %v", err)
		}
	}()

	moduleCfg, err := m.cfg.LoadModuleConfig(instanceName, moduleID)
	if err != nil {
		return nil, err
	}
	if !moduleCfg.Enabled {
		return nil, fmt.Errorf("module %q is disabled in instance %q", moduleID, instanceName)
	}

	cl := client.New(moduleCfg, mod.BaseAPIPath())
	st := store.New(instanceName)
	result := &PullResult{CountsByType: map[string]int{}}

	for _, ct := range mod.ContentTypes() {
		logger.Infof("Pulling %s...", ct.Name)
		objects, err := cl.PullContentType(ctx, ct)
		if err != nil {
			logger.Warnf("Failed to pull %s: %v", ct.Name, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", ct.Name, err))
			continue
		}

		result.CountsByType[ct.Name] = len(objects)
		for _, obj := range objects {
			relPath, err := st.WriteObject(moduleID, obj)
			if err != nil {
				return nil, err
			}
			result.PulledFiles = append(result.PulledFiles, relPath)
		}
	}

	if len(result.PulledFiles) == 0 {
		return result, nil
	}

	repo, err := gitrepo.Open(instanceName)
	if err != nil {
		return nil, err
	}
	hasChanges, changedCount, changedFiles, err := repo.HasChangesAfterAdd(result.PulledFiles)
	if err != nil {
		return nil, err
	}
	if !hasChanges {
		return result, nil
	}

	message := commitMessage(moduleID, changedCount, changedFiles)
	if err := repo.Commit(message); err != nil {
		return nil, fmt.Errorf("failed to commit changes: %w", err)
	}
	result.Committed = true
	result.ChangedCount = changedCount
	result.CommitMessage = message
	return result, nil
}

// commitMessage names the changed objects when few, or counts them when many.
func commitMessage(moduleID string, changedCount int, changedFiles []string) string {
	names := make([]string, 0, len(changedFiles))
	for _, path := range changedFiles {
		parts := strings.Split(path, "/")
		name := parts[len(parts)-1]
		names = append(names, strings.TrimSuffix(name, ".yaml"))
	}

	moduleLabel := strings.ToUpper(moduleID)
	switch {
	case changedCount == 1:
		return fmt.Sprintf("Auto-commit: Updated %s from %s", names[0], moduleLabel)
	case changedCount <= 3:
		return fmt.Sprintf("Auto-commit: Updated %s from %s", strings.Join(names, ", "), moduleLabel)
	default:
		return fmt.Sprintf("Auto-commit: Updated %d files from %s (%s)", changedCount, moduleLabel, strings.Join(names[:2], ", "))
	}
}

// DiffKind classifies one diff finding.
type DiffKind int

const (
	// DiffChanged means the local file logically differs from the remote object.
	DiffChanged DiffKind = iota

	// DiffLocalOnly means the object exists locally but was not found remotely.
	DiffLocalOnly

	// DiffError means the local file could not be read or compared.
	DiffError
)

// DiffEntry is one finding of a drift check.
type DiffEntry struct {
	Path    string
	Kind    DiffKind
	Details []string
}

// Diff compares every local file of one module against the remote objects,
// using logical equality so metadata-only changes never count as drift.
func (m *Manager) Diff(ctx context.Context, instanceName, moduleID string) ([]DiffEntry, error) {
	mod := m.registry.Get(moduleID)
	if mod == nil {
		return nil, fmt.Errorf("unknown module: %s", moduleID)
	}

	moduleCfg, err := m.cfg.LoadModuleConfig(instanceName, moduleID)
	if err != nil {
		return nil, err
	}
	cl := client.New(moduleCfg, mod.BaseAPIPath())
	st := store.New(instanceName)

	descriptors := map[string]modules.ContentType{}
	ctNames := make([]string, 0, len(mod.ContentTypes()))
	for _, ct := range mod.ContentTypes() {
		descriptors[ct.Name] = ct
		ctNames = append(ctNames, ct.Name)
	}

	files, err := st.ListObjectFiles(moduleID, ctNames)
	if err != nil {
		return nil, err
	}

	var entries []DiffEntry
	for _, path := range files {
		local, err := st.ReadObject(path)
		if err != nil {
			entries = append(entries, DiffEntry{Path: path, Kind: DiffError, Details: []string{err.Error()}})
			continue
		}

		ct, ok := descriptors[local.ContentType]
		if !ok {
			entries = append(entries, DiffEntry{
				Path: path, Kind: DiffError,
				Details: []string{fmt.Sprintf("unknown content type %q", local.ContentType)},
			})
			continue
		}

		remote, err := cl.GetObjectByID(ctx, ct, local.ID)
		if err != nil {
			entries = append(entries, DiffEntry{Path: path, Kind: DiffLocalOnly})
			continue
		}

		equal, err := store.LogicallyEqual(local, remote)
		if err != nil {
			entries = append(entries, DiffEntry{Path: path, Kind: DiffError, Details: []string{err.Error()}})
			continue
		}
		if !equal {
			entries = append(entries, DiffEntry{
				Path:    path,
				Kind:    DiffChanged,
				Details: describeDifferences(local, remote),
			})
		}
	}

	return entries, nil
}

// describeDifferences summarizes what drifted: reserved field changes,
// content keys present on only one side, and changed values. A version
// annotation is added when the remote carries a strictly newer version.
func describeDifferences(local, remote *object.Object) []string {
	var details []string

	localName, remoteName := "", ""
	if local.Name != nil {
		localName = *local.Name
	}
	if remote.Name != nil {
		remoteName = *remote.Name
	}
	if localName != remoteName {
		details = append(details, fmt.Sprintf("name: local=%q remote=%q", localName, remoteName))
	}
	if local.Description != remote.Description {
		details = append(details, "description differs")
	}

	keys := map[string]struct{}{}
	for key := range local.Content {
		keys[key] = struct{}{}
	}
	for key := range remote.Content {
		keys[key] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		localVal, inLocal := local.Content[key]
		remoteVal, inRemote := remote.Content[key]
		switch {
		case !inRemote:
			details = append(details, fmt.Sprintf("field %q only in local", key))
		case !inLocal:
			details = append(details, fmt.Sprintf("field %q only in remote", key))
		default:
			localYAML, errL := store.SerializeContent(map[string]any{key: localVal})
			remoteYAML, errR := store.SerializeContent(map[string]any{key: remoteVal})
			if errL == nil && errR == nil && string(localYAML) != string(remoteYAML) {
				details = append(details, fmt.Sprintf("field %q differs", key))
			}
		}
	}

	if versions.IsNewerVersion(remote.Metadata.Version, local.Metadata.Version) {
		details = append(details, fmt.Sprintf("remote version %s is newer than local %s",
			remote.Metadata.Version, local.Metadata.Version))
	}

	return details
}

// EndpointResult reports one content type's endpoint test.
type EndpointResult struct {
	ContentType string
	Count       int
	Err         error
}

// TestEndpoints verifies connectivity, then exercises every content type
// endpoint of the module and reports per-endpoint outcomes.
func (m *Manager) TestEndpoints(ctx context.Context, instanceName, moduleID string) ([]EndpointResult, error) {
	mod := m.registry.Get(moduleID)
	if mod == nil {
		return nil, fmt.Errorf("unknown module: %s", moduleID)
	}

	moduleCfg, err := m.cfg.LoadModuleConfig(instanceName, moduleID)
	if err != nil {
		return nil, err
	}
	cl := client.New(moduleCfg, mod.BaseAPIPath())

	if err := cl.TestConnectivity(ctx); err != nil {
		return nil, err
	}

	results := make([]EndpointResult, 0, len(mod.ContentTypes()))
	for _, ct := range mod.ContentTypes() {
		objects, err := cl.PullContentType(ctx, ct)
		results = append(results, EndpointResult{
			ContentType: ct.Name,
			Count:       len(objects),
			Err:         err,
		})
	}
	return results, nil
}

// ModuleStatus is the connectivity state of one module of an instance.
type ModuleStatus struct {
	ModuleID string
	Err      error
}

// InstanceStatus summarizes one instance: uncommitted files and per-module
// connectivity.
type InstanceStatus struct {
	Instance      string
	GitAvailable  bool
	ModifiedFiles []string
	Modules       []ModuleStatus
}

// Status inspects the instance repository and checks connectivity for every
// configured module.
func (m *Manager) Status(ctx context.Context, instanceName string) *InstanceStatus {
	status := &InstanceStatus{Instance: instanceName}

	repo, err := gitrepo.Open(instanceName)
	if err == nil {
		status.GitAvailable = true
		modified, err := repo.ModifiedFiles()
		if err != nil {
			logger.Warnf("Failed to read Git status for %s: %v", instanceName, err)
		} else {
			sort.Strings(modified)
			status.ModifiedFiles = modified
		}
	}

	for _, mod := range m.registry.All() {
		moduleCfg, err := m.cfg.LoadModuleConfig(instanceName, mod.ID())
		if err != nil {
			status.Modules = append(status.Modules, ModuleStatus{ModuleID: mod.ID(), Err: err})
			continue
		}
		if !moduleCfg.Enabled {
			continue
		}
		cl := client.New(moduleCfg, mod.BaseAPIPath())
		status.Modules = append(status.Modules, ModuleStatus{ModuleID: mod.ID(), Err: cl.TestConnectivity(ctx)})
	}

	return status
}

// ValidationResult is the outcome of validating one local file.
type ValidationResult struct {
	Path string
	Err  error
}

// ValidateInstance parses every local object file of the instance and checks
// it against the module registry.
func (m *Manager) ValidateInstance(instanceName string) ([]ValidationResult, error) {
	st := store.New(instanceName)

	var results []ValidationResult
	for _, mod := range m.registry.All() {
		ctNames := make([]string, 0, len(mod.ContentTypes()))
		for _, ct := range mod.ContentTypes() {
			ctNames = append(ctNames, ct.Name)
		}
		files, err := st.ListObjectFiles(mod.ID(), ctNames)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			results = append(results, ValidationResult{
				Path: path,
				Err:  m.validateFile(st, mod.ID(), path),
			})
		}
	}
	return results, nil
}

// ValidateFiles validates an explicit list of file paths.
func (m *Manager) ValidateFiles(paths []string) []ValidationResult {
	st := store.New(".")
	results := make([]ValidationResult, 0, len(paths))
	for _, path := range paths {
		// Explicit paths carry the instance prefix: instance/module/type/file.
		parts := strings.Split(path, "/")
		moduleID := ""
		if len(parts) >= 3 {
			moduleID = parts[len(parts)-3]
		}
		results = append(results, ValidationResult{
			Path: path,
			Err:  m.validateFile(st, moduleID, path),
		})
	}
	return results
}

func (m *Manager) validateFile(st *store.Store, moduleID, path string) error {
	obj, err := st.ReadObject(path)
	if err != nil {
		return err
	}
	if moduleID == "" {
		return fmt.Errorf("cannot determine module for %s", path)
	}
	return m.registry.ValidateContentType(moduleID, obj.ContentType)
}
