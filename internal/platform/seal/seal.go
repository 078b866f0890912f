// Package seal provides the at-rest cipher for document content. Content is
// encrypted with AES-256-GCM under a key injected at construction time and
// stored as "nonceHex:cipherHex" so the nonce travels with the ciphertext.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// CipherError reports a malformed or undecryptable sealed value. Callers that
// read documents are expected to detect it with errors.As and decide whether
// to degrade or fail.
type CipherError struct {
	Op  string
	Err error
}

func (e *CipherError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("seal: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("seal: %s", e.Op)
}

func (e *CipherError) Unwrap() error { return e.Err }

// Sealer encrypts and decrypts document content with a fixed process-wide key.
type Sealer struct {
	aead cipher.AEAD
}

// New creates a Sealer from a 32-byte key. The key must be supplied by the
// caller; there is deliberately no generate-on-boot fallback, since a random
// key would orphan every previously sealed record on restart.
func New(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("seal: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce and returns the sealed
// form "nonceHex:cipherHex".
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("seal: generate nonce: %w", err)
	}

	ct := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ct), nil
}

// Unseal splits the sealed value on the first ":", recovers the nonce, and
// decrypts. Any malformed input or authentication failure yields a
// *CipherError.
func (s *Sealer) Unseal(sealed string) (string, error) {
	ivPart, ctPart, found := strings.Cut(sealed, ":")
	if !found {
		return "", &CipherError{Op: "unseal: missing separator"}
	}

	nonce, err := hex.DecodeString(ivPart)
	if err != nil {
		return "", &CipherError{Op: "unseal: decode nonce", Err: err}
	}
	if len(nonce) != s.aead.NonceSize() {
		return "", &CipherError{Op: fmt.Sprintf("unseal: nonce must be %d bytes, got %d", s.aead.NonceSize(), len(nonce))}
	}

	ct, err := hex.DecodeString(ctPart)
	if err != nil {
		return "", &CipherError{Op: "unseal: decode ciphertext", Err: err}
	}

	pt, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", &CipherError{Op: "unseal: decrypt", Err: err}
	}
	return string(pt), nil
}
