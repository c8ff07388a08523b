// Package cryptoutil seals per-account secrets such as stored scoring keys.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Encryptor seals secrets to a scope. Ciphertext sealed for one scope does not open under another.
type Encryptor interface {
	Encrypt(plaintext []byte, scope string) (string, error)
	Decrypt(ciphertext, scope string) ([]byte, error)
}

const (
	// Versioned prefix so keys or algorithms can rotate without a data migration.
	cipherPrefixV1 = "v1:"
	noopPrefix     = "noop:"
)

var (
	// ErrScopeRequired is returned when sealing or opening without a scope.
	ErrScopeRequired = errors.New("encryption scope is required")
	// ErrUnknownVersion is returned for ciphertext without a recognised prefix.
	ErrUnknownVersion = errors.New("unknown ciphertext version")
)

// AESGCMEncryptor implements Encryptor with AES-256-GCM, using the scope as additional data.
type AESGCMEncryptor struct {
	aead cipher.AEAD
}

// NewAESGCMEncryptor builds an encryptor. Key must be 32 bytes (AES-256).
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMEncryptor{aead: aead}, nil
}

// Encrypt returns "v1:" + base64(nonce || sealed).
func (e *AESGCMEncryptor) Encrypt(plaintext []byte, scope string) (string, error) {
	if scope == "" {
		return "", ErrScopeRequired
	}
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, []byte(scope))
	return cipherPrefixV1 + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value from Encrypt. Values written by NoopEncryptor are still readable.
func (e *AESGCMEncryptor) Decrypt(ciphertext, scope string) ([]byte, error) {
	if scope == "" {
		return nil, ErrScopeRequired
	}
	if strings.HasPrefix(ciphertext, noopPrefix) {
		return NoopEncryptor{}.Decrypt(ciphertext, scope)
	}
	b64, ok := strings.CutPrefix(ciphertext, cipherPrefixV1)
	if !ok {
		return nil, ErrUnknownVersion
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	n := e.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("ciphertext too short")
	}
	pt, err := e.aead.Open(nil, data[:n], data[n:], []byte(scope))
	if err != nil {
		return nil, fmt.Errorf("open ciphertext: %w", err)
	}
	return pt, nil
}

// NoopEncryptor stores base64 plaintext behind a marker. Development only.
type NoopEncryptor struct{}

func (NoopEncryptor) Encrypt(plaintext []byte, _ string) (string, error) {
	return noopPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

func (NoopEncryptor) Decrypt(ciphertext, _ string) ([]byte, error) {
	b64, ok := strings.CutPrefix(ciphertext, noopPrefix)
	if !ok {
		return nil, errors.New("invalid noop ciphertext")
	}
	return base64.StdEncoding.DecodeString(b64)
}
