// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

// Package store persists RDM parameter data between driver lifetimes.
// The file store keeps one CBOR map per file, keyed by parameter ID, and
// rewrites it atomically on every save.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// File is a dmx.Store backed by a single CBOR file.
type File struct {
	mu   sync.Mutex
	path string
	data map[uint16][]byte
}

// Open reads an existing parameter file or starts an empty one.
func Open(path string) (*File, error) {
	f := &File{path: path, data: make(map[uint16][]byte)}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", path, err)
	}
	if err := cbor.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", path, err)
	}
	return f, nil
}

// Load returns the saved bytes for a parameter ID.
func (f *File) Load(pid uint16) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[pid]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Save writes the bytes for a parameter ID and flushes the whole map to
// disk through a rename so a crash never leaves a half-written file.
func (f *File) Save(pid uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[pid] = append([]byte(nil), data...)

	raw, err := cbor.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("store: encoding: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("store: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("store: committing %s: %w", f.path, err)
	}
	return nil
}

// DefaultPath places the parameter file under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "esp-dmx", "parameters.cbor")
}
