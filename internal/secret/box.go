// Package secret seals small secrets (provider credentials, webhook keys)
// with a key derived from the platform crypt key.
package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinKeyLength is the shortest crypt key accepted by New.
const MinKeyLength = 16

const keyInfo = "billstore/secret-box/v1"

// ErrKeyTooShort is returned when the crypt key is shorter than MinKeyLength.
var ErrKeyTooShort = errors.New("crypt key too short")

// ErrMalformed is returned when a sealed value cannot be opened.
var ErrMalformed = errors.New("malformed or tampered sealed value")

// Box encrypts and authenticates values with XChaCha20-Poly1305.
type Box struct {
	aead cipher.AEAD
}

// New derives the sealing key from key with HKDF-SHA256.
func New(key []byte) (*Box, error) {
	if len(key) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(keyInfo)), derived); err != nil {
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext bound to associated (for example the owning
// tenant id) and returns nonce||ciphertext as unpadded base64url.
func (b *Box) Seal(plaintext, associated []byte) (string, error) {
	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plaintext)+b.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	out := b.aead.Seal(nonce, nonce, plaintext, associated)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. The associated data must match.
func (b *Box) Open(sealed string, associated []byte) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(raw) < b.aead.NonceSize()+b.aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ct := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ct, associated)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return plaintext, nil
}
