package crypto

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadToken_FileWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "github_token.txt")
	if err := os.WriteFile(path, []byte("  file-token-123\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DASHGATE_TEST_TOKEN", "env-token-456")

	tok, src, err := LoadToken(TokenOptions{FilePath: path, EnvVar: "DASHGATE_TEST_TOKEN"})
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if tok != "file-token-123" || src != TokenSourceFile {
		t.Fatalf("got %q from %s", tok, src)
	}
}

func TestLoadToken_EnvFallback(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DASHGATE_TEST_TOKEN", "env-token-456")

	tok, src, err := LoadToken(TokenOptions{FilePath: filepath.Join(dir, "missing.txt"), EnvVar: "DASHGATE_TEST_TOKEN"})
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if tok != "env-token-456" || src != TokenSourceEnv {
		t.Fatalf("got %q from %s", tok, src)
	}
}

func TestLoadToken_EmptyFileFallsThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "github_token.txt")
	if err := os.WriteFile(path, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DASHGATE_TEST_TOKEN", "")

	_, _, err := LoadToken(TokenOptions{FilePath: path, EnvVar: "DASHGATE_TEST_TOKEN"})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestSaveToken_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "github_token.txt")

	if err := SaveToken(path, " abc123456789 "); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("perm = %v", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "abc123456789" {
		t.Fatalf("content = %q", data)
	}
	if err := SaveToken(path, "  "); err == nil {
		t.Fatalf("empty token should be rejected")
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("ghp_1234567890abcd"); got != "ghp_**********abcd" {
		t.Fatalf("MaskToken = %q", got)
	}
	if got := MaskToken("short"); got != "*****" {
		t.Fatalf("MaskToken = %q", got)
	}
}
