package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "storefront session seal v1"

// Sealer encrypts the persisted session so a copied state file does not leak
// the bearer token.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("empty session secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(StorageKey)), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed blob too short", ErrSessionCorrupt)
	}
	plain, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(StorageKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return plain, nil
}
