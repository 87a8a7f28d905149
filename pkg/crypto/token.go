package crypto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrTokenNotFound is returned when neither the token file nor the
// environment variable holds a value.
var ErrTokenNotFound = errors.New("publish token not found")

// TokenSource names where a token was found.
type TokenSource string

const (
	TokenSourceFile TokenSource = "file"
	TokenSourceEnv  TokenSource = "env"
)

// TokenOptions locates the publish token.
type TokenOptions struct {
	FilePath string
	EnvVar   string // e.g., GITHUB_TOKEN
}

// LoadToken reads the token from FilePath, then from EnvVar. Surrounding
// whitespace is trimmed; an empty file counts as missing.
func LoadToken(opts TokenOptions) (string, TokenSource, error) {
	if opts.FilePath != "" {
		b, err := os.ReadFile(opts.FilePath)
		switch {
		case err == nil:
			if tok := strings.TrimSpace(string(b)); tok != "" {
				return tok, TokenSourceFile, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", "", fmt.Errorf("failed to read token file: %w", err)
		}
	}
	if opts.EnvVar != "" {
		if tok := strings.TrimSpace(os.Getenv(opts.EnvVar)); tok != "" {
			return tok, TokenSourceEnv, nil
		}
	}
	return "", "", ErrTokenNotFound
}

// SaveToken writes token to path with permissions 0600.
func SaveToken(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create dir for token: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(token), fs.FileMode(0600)); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// MaskToken keeps the first and last four characters of a token.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
