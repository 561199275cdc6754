// Package sealer encrypts private key PEMs before they reach storage.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "xc20p1:"

var ErrNotSealed = errors.New("value is not sealed")

// Sealer turns plaintext key material into an opaque storable string and back.
// binding is authenticated but not stored; Open must be given the same bytes
// Seal was.
type Sealer interface {
	Seal(plaintext string, binding []byte) (string, error)
	Open(sealed string, binding []byte) (string, error)
}

// Noop stores key material as-is. Used when no master key is configured.
type Noop struct{}

func (Noop) Seal(plaintext string, _ []byte) (string, error) { return plaintext, nil }
func (Noop) Open(sealed string, _ []byte) (string, error)    { return sealed, nil }

// AEAD seals with XChaCha20-Poly1305 under a 32-byte master key. Output is
// prefix || base64(nonce || ciphertext); the binding is the associated data.
type AEAD struct {
	aead cipher.AEAD
}

func NewAEAD(masterKey []byte) (*AEAD, error) {
	aead, err := chacha20poly1305.NewX(masterKey)
	if err != nil {
		return nil, fmt.Errorf("init xchacha20poly1305: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

func (a *AEAD) Seal(plaintext string, binding []byte) (string, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := a.aead.Seal(nonce, nonce, []byte(plaintext), binding)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

func (a *AEAD) Open(sealed string, binding []byte) (string, error) {
	raw, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrNotSealed
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	ns := a.aead.NonceSize()
	if len(data) < ns {
		return "", errors.New("sealed value too short")
	}
	plain, err := a.aead.Open(nil, data[:ns], data[ns:], binding)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}

// FromConfig returns an AEAD sealer for a base64 master key, or Noop when the
// key is empty.
func FromConfig(masterKeyB64 string) (Sealer, error) {
	if masterKeyB64 == "" {
		return Noop{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return NewAEAD(key)
}
