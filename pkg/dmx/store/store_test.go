// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parameters.cbor")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok, err := f.Load(0x00f0); err != nil || ok {
		t.Fatalf("Load on empty store = %v, %v", ok, err)
	}
	if err := f.Save(0x00f0, []byte{0x01, 0x90}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := f.Save(0x0082, []byte("dimmer 12")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh handle sees everything the first one wrote.
	g, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	v, ok, err := g.Load(0x00f0)
	if err != nil || !ok || !bytes.Equal(v, []byte{0x01, 0x90}) {
		t.Fatalf("Load = %x, %v, %v", v, ok, err)
	}
	v, ok, err = g.Load(0x0082)
	if err != nil || !ok || !bytes.Equal(v, []byte("dimmer 12")) {
		t.Fatalf("Load = %q, %v, %v", v, ok, err)
	}
}

func TestOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parameters.cbor")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Save(0x1000, []byte{0}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := f.Save(0x1000, []byte{1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	v, ok, err := f.Load(0x1000)
	if err != nil || !ok || !bytes.Equal(v, []byte{1}) {
		t.Fatalf("Load = %x, %v, %v", v, ok, err)
	}
}

func TestNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "parameters.cbor"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Save(0x00f0, []byte{0x2a}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(ents) != 1 || ents[0].Name() != "parameters.cbor" {
		t.Fatalf("directory holds %v, want only parameters.cbor", ents)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parameters.cbor")
	if err := os.WriteFile(path, []byte("not cbor at all"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("Open accepted a corrupt file")
	}
}
