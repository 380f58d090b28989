// Package proctest builds executables for tests that launch real processes.
package proctest

import (
	"os"
	"path/filepath"
	"testing"
)

// Script writes an executable /bin/sh script called name into dir and
// returns its path.
func Script(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// File writes a non-executable file called name into dir and returns its
// path.
func File(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// BinDir creates a temp directory populated with scripts. The map keys are
// the script names and values are the script bodies.
func BinDir(t *testing.T, scripts map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range scripts {
		Script(t, dir, name, body)
	}
	return dir
}

// ReadFile returns the contents of a file or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
