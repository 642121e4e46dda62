package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"backend-cragmap/internal/catalog"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateBundled(t *testing.T) {
	out, err := runCmd(t, "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "sites=5 excluded=1") || !strings.Contains(out, "Unmapped Boulder") {
		t.Fatalf("unexpected report:\n%s", out)
	}
	if _, err := runCmd(t, "validate", "--strict"); err == nil {
		t.Fatalf("strict validation should fail on excluded entries")
	}
}

func TestValidateDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := runCmd(t, "--dir", dir, "validate"); err == nil {
		t.Fatalf("expected error for unparseable dataset")
	}
}

func TestOptions(t *testing.T) {
	out, err := runCmd(t, "options")
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	var opts catalog.Options
	if err := json.Unmarshal([]byte(out), &opts); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}
	if opts.Regions[0] != catalog.All || len(opts.Regions) != 3 {
		t.Fatalf("unexpected regions %v", opts.Regions)
	}
}

func TestSearch(t *testing.T) {
	out, err := runCmd(t, "search", "--difficulty", "HVS")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if strings.Count(out, "\n") != 1 || !strings.Contains(out, "Scrabo Quarry") {
		t.Fatalf("unexpected search output:\n%s", out)
	}

	out, _ = runCmd(t, "search", "--suggest", "cave")
	if !strings.Contains(out, "Cave Hill") {
		t.Fatalf("expected Cave Hill suggestion:\n%s", out)
	}
}
