package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SessionKeySize is the key length for the session file AEAD.
const SessionKeySize = chacha20poly1305.KeySize

// Seal encrypts plaintext with XChaCha20-Poly1305 and returns the nonce
// followed by the ciphertext as a single blob.
func Seal(key, plaintext []byte) ([]byte, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("invalid session key length: got %d want %d", len(key), SessionKeySize)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func Open(key, blob []byte) ([]byte, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("invalid session key length: got %d want %d", len(key), SessionKeySize)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	if len(blob) < aead.NonceSize() {
		return nil, errors.New("sealed blob too short")
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob: %w", err)
	}

	return plaintext, nil
}
