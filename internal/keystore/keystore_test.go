package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "obconnect/pkg/domain-errors"
)

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

func TestStore_LoadAndGet(t *testing.T) {
	store := NewStore()

	key, err := store.Load(KeyMaterial{KeyID: "seal-1", PrivateKeyPEM: testKeyPEM(t)})
	require.NoError(t, err)
	assert.Equal(t, "seal-1", key.KeyID)
	assert.NotNil(t, key.PrivateKey)

	got, err := store.Get("seal-1")
	require.NoError(t, err)
	assert.Equal(t, key.PrivateKey, got.PrivateKey)
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore()
	_, err := store.Get("absent")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestStore_LoadMalformedKey(t *testing.T) {
	store := NewStore()
	_, err := store.Load(KeyMaterial{KeyID: "bad", PrivateKeyPEM: []byte("not a pem")})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSigning))
}

func TestStore_LoadRejectsEmptyKeyID(t *testing.T) {
	store := NewStore()
	_, err := store.Load(KeyMaterial{PrivateKeyPEM: testKeyPEM(t)})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestStore_LoadDuplicateKeyID(t *testing.T) {
	store := NewStore()
	_, err := store.Load(KeyMaterial{KeyID: "seal-1", PrivateKeyPEM: testKeyPEM(t)})
	require.NoError(t, err)

	_, err = store.Load(KeyMaterial{KeyID: "seal-1", PrivateKeyPEM: testKeyPEM(t)})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
