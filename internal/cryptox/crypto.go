// Package cryptox seals device cloud bearer tokens before they are stored
// in the sync_connections table. Keys are derived from a server secret with
// argon2id; payloads are encrypted with AES-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

// DeriveKey derives a 32-byte AES-256 key from a server secret and salt
// using argon2id.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

// Sealer encrypts and decrypts small secrets with a fixed key.
type Sealer struct {
	key []byte
}

// NewSealer returns a Sealer for the given AES key
// (16, 24, or 32 bytes).
func NewSealer(key []byte) (*Sealer, error) {
	switch len(key) {
	case 16, 24, 32:
		return &Sealer{key: key}, nil
	default:
		return nil, errors.New("cryptox: invalid key length")
	}
}

// Seal encrypts plaintext with AES-GCM under a fresh random nonce.
// The ciphertext and nonce are returned separately so callers can store
// them in distinct columns.
func (s *Sealer) Seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open decrypts a ciphertext produced by Seal.
func (s *Sealer) Open(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return gcm.Open(nil, nonce, ciphertext, nil)
}
