// Package store persists the Sentinel catalog (processes, groups, ports,
// next-ID counter) as one JSON document, with the crash-safety and
// cross-process locking contract described in spec §4.1 and §5.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/sentinelhq/sentinel/pkg/errs"
)

// Store is the crash-safe on-disk catalog. It is the sole source of truth;
// Registry holds the in-memory working copy and flushes through Store.
type Store struct {
	path string // e.g. <state_dir>/state.json
	lock *flock.Flock
}

// New returns a Store rooted at <stateDir>/state.json, guarded by an
// advisory lock file at <stateDir>/state.json.lock so that concurrent
// writers (the CLI and the daemon) serialize their load-mutate-save cycles
// (spec §5, "Cross-process coordination").
func New(stateDir string) *Store {
	return &Store{
		path: filepath.Join(stateDir, "state.json"),
		lock: flock.New(filepath.Join(stateDir, "state.json.lock")),
	}
}

// Path returns the canonical state file path.
func (s *Store) Path() string { return s.path }

// Lock acquires the cross-process advisory lock covering one
// load-mutate-save cycle. The caller must call the returned unlock func.
func (s *Store) Lock() (func(), error) {
	if err := s.lock.Lock(); err != nil {
		return nil, errs.IOFailure(s.path+".lock", err)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// Load returns the deserialized catalog, or an empty one if the file is
// absent (spec §4.1 "Missing file -> empty catalog"). Corrupt JSON is fatal
// and reported with the offending path and parse position.
func (s *Store) Load() (Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return Catalog{}, errs.IOFailure(s.path, err)
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		detail := err.Error()
		if se, ok := err.(*json.SyntaxError); ok {
			detail = fmt.Sprintf("%s (byte offset %d)", se.Error(), se.Offset)
		}
		return Catalog{}, errs.CorruptState(s.path, detail)
	}

	if cat.Version > SchemaVersion {
		return Catalog{}, errs.CorruptState(s.path, fmt.Sprintf("unknown schema version %d", cat.Version))
	}
	if cat.Processes == nil {
		cat.Processes = []ProcessRecord{}
	}
	if cat.Groups == nil {
		cat.Groups = []GroupRecord{}
	}
	if cat.Ports == nil {
		cat.Ports = []PortRecord{}
	}
	if cat.NextID < 1 {
		cat.NextID = 1
	}
	return cat, nil
}

// Save commits the catalog atomically: serialize to a sibling temp file,
// fsync it, then rename over the canonical path, so a concurrent reader
// always observes either the pre- or post-image (spec §4.1, §8 property 6).
func (s *Store) Save(cat Catalog) error {
	if unknown := cat.UnknownRecordTypes(); len(unknown) > 0 {
		return errs.CorruptState(s.path, fmt.Sprintf("refusing to save: unknown record types %v would be discarded by this version", unknown))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.IOFailure(dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errs.IOFailure(s.path, err)
	}
	tmpPath := tmp.Name()
	// Best-effort cleanup if we bail before the rename lands.
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.Remove(tmpPath)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cat); err != nil {
		tmp.Close()
		return errs.IOFailure(s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.IOFailure(s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.IOFailure(s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errs.IOFailure(s.path, err)
	}
	succeeded = true
	return nil
}
