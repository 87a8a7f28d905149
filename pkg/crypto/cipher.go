// Package crypto obfuscates dashboard URLs in published config documents and
// loads the credential used to publish them.
//
// The key is derived from a secret and salt that ship with the binary, so
// the cipher hides URLs from casual readers of the remote document. It is
// obfuscation, not confidentiality.
package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"
)

// MinIterations is the lowest PBKDF2 iteration count accepted.
const MinIterations = 100000

// Options configures key derivation.
type Options struct {
	Secret     string
	Salt       string
	Iterations int
}

// DefaultOptions returns the key material shipped with the binary. Values
// encrypted with it are obfuscated, not confidential.
func DefaultOptions() Options {
	return Options{
		Secret:     "WMT_DTR_2025_SECURE_KEY_v1.0_PROD_ENV_ENCRYPTED_URLS",
		Salt:       "WMT_DATORAMA_SALT_2025",
		Iterations: MinIterations,
	}
}

// ErrNotCiphertext is returned by DecryptStrict for values that do not decode
// as a token under the derived key.
var ErrNotCiphertext = errors.New("value is not a valid token")

// DeriveKey stretches secret and salt with PBKDF2-HMAC-SHA256 into a Fernet
// key. The same inputs give the same key on every machine.
func DeriveKey(secret, salt string, iterations int) *fernet.Key {
	if iterations < MinIterations {
		iterations = MinIterations
	}
	raw := pbkdf2.Key([]byte(secret), []byte(salt), iterations, 32, sha256.New)
	var k fernet.Key
	copy(k[:], raw)
	return &k
}

// Cipher encrypts and decrypts individual string fields.
type Cipher struct {
	key  *fernet.Key
	seal func(msg []byte, k *fernet.Key) ([]byte, error)
}

// NewCipher derives the key once and returns a ready cipher.
func NewCipher(opts Options) (*Cipher, error) {
	if opts.Secret == "" || opts.Salt == "" {
		return nil, fmt.Errorf("cipher secret and salt are required")
	}
	return &Cipher{
		key:  DeriveKey(opts.Secret, opts.Salt, opts.Iterations),
		seal: fernet.EncryptAndSign,
	}, nil
}

// EncryptStrict returns the standard base64 encoding of a Fernet token for
// plaintext.
func (c *Cipher) EncryptStrict(plaintext string) (string, error) {
	tok, err := c.seal([]byte(plaintext), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(tok), nil
}

// Encrypt is EncryptStrict that returns plaintext unchanged on failure.
func (c *Cipher) Encrypt(plaintext string) string {
	out, err := c.EncryptStrict(plaintext)
	if err != nil {
		return plaintext
	}
	return out
}

// DecryptStrict reverses EncryptStrict.
func (c *Cipher) DecryptStrict(value string) (string, error) {
	tok, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotCiphertext, err)
	}
	msg := fernet.VerifyAndDecrypt(tok, 0, []*fernet.Key{c.key})
	if msg == nil {
		return "", ErrNotCiphertext
	}
	return string(msg), nil
}

// Decrypt returns plaintext for value. Values that already look like URLs,
// and values that fail to decrypt, are returned unchanged.
func (c *Cipher) Decrypt(value string) string {
	if LooksLikeURL(value) {
		return value
	}
	out, err := c.DecryptStrict(value)
	if err != nil {
		return value
	}
	return out
}

// LooksLikeURL reports whether value starts with an http or https scheme.
func LooksLikeURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}
