package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	secret := []byte("server-secret")
	salt := []byte("plaudsync-tokens")

	k1 := DeriveKey(secret, salt)
	k2 := DeriveKey(secret, salt)

	require.Len(t, k1, 32)
	require.True(t, bytes.Equal(k1, k2), "same inputs must derive the same key")

	k3 := DeriveKey([]byte("other-secret"), salt)
	require.False(t, bytes.Equal(k1, k3))
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(DeriveKey([]byte("secret"), []byte("salt")))
	require.NoError(t, err)

	token := []byte("device-bearer-token")
	ct, nonce, err := s.Seal(token)
	require.NoError(t, err)
	require.NotEqual(t, token, ct)

	got, err := s.Open(ct, nonce)
	require.NoError(t, err)
	require.Equal(t, token, got)
}

func TestSealer_TamperedCiphertext(t *testing.T) {
	s, err := NewSealer(DeriveKey([]byte("secret"), []byte("salt")))
	require.NoError(t, err)

	ct, nonce, err := s.Seal([]byte("token"))
	require.NoError(t, err)

	ct[0] ^= 0xff
	_, err = s.Open(ct, nonce)
	require.Error(t, err)
}

func TestNewSealer_InvalidKeyLength(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	require.Error(t, err)
}
