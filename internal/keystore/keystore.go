// Package keystore holds signing key material for outbound request signing.
//
// Keys are provisioned at startup and never rotated in-process, so the store
// is read-mostly: Load parses and registers material once, Get serves
// concurrent readers for the lifetime of the process.
package keystore

import (
	"crypto/rsa"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	dErrors "obconnect/pkg/domain-errors"
)

// KeyMaterial is the raw provisioning input for a signing key.
type KeyMaterial struct {
	KeyID          string
	PrivateKeyPEM  []byte
	CertificatePEM []byte
}

// SigningKey is parsed, immutable key material ready for JWS signing.
type SigningKey struct {
	KeyID       string
	PrivateKey  *rsa.PrivateKey
	Certificate []byte
}

// Store maps key identifiers to signing keys.
type Store struct {
	mu   sync.RWMutex
	keys map[string]SigningKey
}

func NewStore() *Store {
	return &Store{keys: make(map[string]SigningKey)}
}

// Load parses and registers key material. Malformed private keys fail with
// a signing error; re-loading an existing key ID is a conflict, since keys
// are provisioned, not rotated in-process.
func (s *Store) Load(material KeyMaterial) (SigningKey, error) {
	if material.KeyID == "" {
		return SigningKey{}, dErrors.New(dErrors.CodeInvalidInput, "key id must not be empty")
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM(material.PrivateKeyPEM)
	if err != nil {
		return SigningKey{}, dErrors.Wrap(err, dErrors.CodeSigning, "parse private key")
	}

	key := SigningKey{
		KeyID:       material.KeyID,
		PrivateKey:  priv,
		Certificate: material.CertificatePEM,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[material.KeyID]; exists {
		return SigningKey{}, dErrors.New(dErrors.CodeConflict, "key already loaded: "+material.KeyID)
	}
	s.keys[material.KeyID] = key
	return key, nil
}

// Get returns the signing key for the given key ID.
func (s *Store) Get(keyID string) (SigningKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyID]
	if !ok {
		return SigningKey{}, dErrors.New(dErrors.CodeNotFound, "signing key not found: "+keyID)
	}
	return key, nil
}
