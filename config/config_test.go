// Licensed under the MIT License. See LICENSE for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "wwmtool.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if *cfg != *want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestLoadOverridesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wwmtool.yaml")
	content := []byte("sessionRoot: /tmp/wwm-sessions\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionRoot != "/tmp/wwm-sessions" {
		t.Fatalf("got %q", cfg.SessionRoot)
	}
	if cfg.MergeOutputStem != "translation_merged" {
		t.Fatalf("default not preserved: %q", cfg.MergeOutputStem)
	}
	if cfg.CompressionLevel != "default" {
		t.Fatalf("default not preserved: %q", cfg.CompressionLevel)
	}
}
