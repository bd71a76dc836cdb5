package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "msgd dev") {
		t.Errorf("expected output to contain 'msgd dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestDBInitCmd_SQLite(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "msgd.yaml")
	raw := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "test.db") + "\nauth:\n  token_secret: s3cret\n"
	if err := os.WriteFile(configPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "init", "--config", configPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db init failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Migrated 2 tables") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestCleanupCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"cleanup", "--config", filepath.Join(t.TempDir(), "nope.yaml")})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for missing config file")
	}
}
