package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeVault(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

var vaultFiles = map[string]string{
	"Wireguard.md": "# Installation\n## Usage\n",
	"Notes.md":     "[[Wireguard#Instalation]]\n",
}

func TestRunCheck_InvalidFlag(t *testing.T) {
	_, err := runCLI(t, "check", "--invalid")
	if err == nil {
		t.Error("expected error for invalid flag")
	}
}

func TestRunCheck_InvalidFormat(t *testing.T) {
	_, err := runCLI(t, "check", "--format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("expected invalid format error, got: %v", err)
	}
}

func TestRunCheck_Broken(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	out, err := runCLI(t, "check", "--vault", dir)
	if !errors.Is(err, errBrokenLinks) {
		t.Fatalf("expected errBrokenLinks, got: %v", err)
	}
	if !strings.Contains(out, "- path: Notes.md") {
		t.Errorf("missing broken document in output:\n%s", out)
	}
	if !strings.Contains(out, "broken_links: 1") {
		t.Errorf("missing count in output:\n%s", out)
	}
}

func TestRunCheck_Clean(t *testing.T) {
	dir := writeVault(t, map[string]string{"A.md": "# A\n[[#A]]\n"})
	out, err := runCLI(t, "check", "--vault", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "checked: 1\nbroken_links: 0\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunCheck_JSON(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	out, _ := runCLI(t, "check", "--vault", dir, "--format", "json")
	var got struct {
		Checked int `json:"checked"`
		Broken  []struct {
			Path   string `json:"path"`
			Reason string `json:"reason"`
			Target string `json:"target"`
		} `json:"broken"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if got.Checked != 2 || len(got.Broken) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Broken[0].Reason != "missing-heading" || got.Broken[0].Target != "Wireguard.md" {
		t.Errorf("unexpected broken link: %+v", got.Broken[0])
	}
}

func TestRunSuggest(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	out, err := runCLI(t, "suggest", "--vault", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := strings.Index(out, "Installation")
	second := strings.Index(out, "Usage")
	if first < 0 || second < 0 || first > second {
		t.Errorf("expected Installation ranked before Usage:\n%s", out)
	}
}

func TestRunRepair_DryRun(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	out, err := runCLI(t, "repair", "--vault", dir, "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "+[[Wireguard#Installation]]") {
		t.Errorf("expected diff in output:\n%s", out)
	}
	if got := readFile(t, dir, "Notes.md"); got != vaultFiles["Notes.md"] {
		t.Errorf("dry run modified file: %q", got)
	}
}

func TestRunRepair(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	if _, err := runCLI(t, "repair", "--vault", dir, "--min-score", "0.9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readFile(t, dir, "Notes.md"); got != "[[Wireguard#Installation]]\n" {
		t.Errorf("Notes.md = %q", got)
	}
}

func TestRunRepair_SingleLink(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	_, err := runCLI(t, "repair", "--vault", dir, "--link", "[[Wireguard#Instalation]]", "--heading", "Usage", "Notes.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readFile(t, dir, "Notes.md"); got != "[[Wireguard#Usage]]\n" {
		t.Errorf("Notes.md = %q", got)
	}
}

func TestRunRepair_LinkWithoutHeading(t *testing.T) {
	_, err := runCLI(t, "repair", "--link", "[[A#B]]", "A.md")
	if err == nil || !strings.Contains(err.Error(), "must be given together") {
		t.Errorf("expected flag pairing error, got: %v", err)
	}
}

func TestRunRename_MissingOld(t *testing.T) {
	_, err := runCLI(t, "rename", "A.md", "--new", "X")
	if err == nil || !strings.Contains(err.Error(), "--old is required") {
		t.Errorf("expected --old required error, got: %v", err)
	}
}

func TestRunRename_MissingFile(t *testing.T) {
	_, err := runCLI(t, "rename", "--old", "A", "--new", "B")
	if err == nil {
		t.Error("expected error without file argument")
	}
}

func TestRunRename(t *testing.T) {
	dir := writeVault(t, map[string]string{
		"Wireguard.md": "# Setup\n",
		"Notes.md":     "[[Wireguard#Setup|how]]\n",
	})
	out, err := runCLI(t, "rename", "--vault", dir, "Wireguard.md", "--old", "Setup", "--new", "Installation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "- Notes.md") {
		t.Errorf("expected Notes.md in output:\n%s", out)
	}
	if got := readFile(t, dir, "Notes.md"); got != "[[Wireguard#Installation|how]]\n" {
		t.Errorf("Notes.md = %q", got)
	}
	if got := readFile(t, dir, "Wireguard.md"); got != "# Installation\n" {
		t.Errorf("Wireguard.md = %q", got)
	}
}

func TestRunIndex(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	out, err := runCLI(t, "index", "--vault", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "notes: 2\n") || !strings.Contains(out, "links: 1\n") {
		t.Errorf("unexpected stats:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".anchorsync", "index.sqlite")); err != nil {
		t.Errorf("index not written: %v", err)
	}
}

func TestScopeFromEnvironment(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	t.Setenv("ANCHORSYNC_SYNC_SCOPE", "backlinks")
	if _, err := runCLI(t, "suggest", "--vault", dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".anchorsync", "index.sqlite")); err != nil {
		t.Errorf("backlinks scope did not build the index: %v", err)
	}
}

func TestInvalidScopeFlag(t *testing.T) {
	dir := writeVault(t, vaultFiles)
	_, err := runCLI(t, "check", "--vault", dir, "--scope", "nearby")
	if err == nil || !strings.Contains(err.Error(), "invalid sync.scope") {
		t.Errorf("expected scope validation error, got: %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	dir := writeVault(t, map[string]string{
		"Wireguard.md":    "# Setup\n",
		"Other.md":        "[vpn](Wireguard.md#Setup)\n",
		"anchorsync.yaml": "sync:\n  cross_file_markdown: true\n",
	})
	if _, err := runCLI(t, "rename", "--vault", dir, "Wireguard.md", "--old", "Setup", "--new", "Installation"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readFile(t, dir, "Other.md"); got != "[vpn](Wireguard.md#Installation)\n" {
		t.Errorf("Other.md = %q", got)
	}
}

func TestRunVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "anchorsync version ") {
		t.Errorf("unexpected output: %q", out)
	}
}
