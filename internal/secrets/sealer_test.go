package secrets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealer_New(t *testing.T) {
	t.Run("empty secret rejected", func(t *testing.T) {
		_, err := NewSealer("")
		require.Error(t, err)
	})

	t.Run("non empty secret ok", func(t *testing.T) {
		s, err := NewSealer("server-secret")
		require.NoError(t, err)
		require.NotNil(t, s)
	})
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("server-secret")
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"short token", "tok"},
		{"access token like", "eyJraWQiOiJmZTM2ZThkMTg0NWMxNzc2NzI3YzM2NTc.yet-more-token-bytes"},
		{"binary bytes", "\x00\x01\xff\xfe binary \x7f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal([]byte(tt.plaintext))
			require.NoError(t, err)
			require.NotEqual(t, tt.plaintext, sealed, "sealed value should not equal plaintext")

			opened, err := s.Open(sealed)
			require.NoError(t, err)
			require.Equal(t, tt.plaintext, string(opened))
		})
	}
}

func TestSealer_SaltVaries(t *testing.T) {
	s, err := NewSealer("server-secret")
	require.NoError(t, err)

	first, err := s.Seal([]byte("same plaintext"))
	require.NoError(t, err)
	second, err := s.Seal([]byte("same plaintext"))
	require.NoError(t, err)

	require.NotEqual(t, first, second, "every encryption should use a fresh salt and nonce")
}

func TestSealer_Open(t *testing.T) {
	s, err := NewSealer("server-secret")
	require.NoError(t, err)

	t.Run("tampered ciphertext rejected", func(t *testing.T) {
		sealed, err := s.Seal([]byte("elevated-token"))
		require.NoError(t, err)

		tampered := []byte(sealed)
		tampered[len(tampered)-5] ^= 'x'

		_, err = s.Open(string(tampered))
		require.Error(t, err)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		sealed, err := s.Seal([]byte("elevated-token"))
		require.NoError(t, err)

		other, err := NewSealer("different-secret")
		require.NoError(t, err)

		_, err = other.Open(sealed)
		require.Error(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := s.Open("not-base64!!")
		require.Error(t, err)

		_, err = s.Open("dG9vLXNob3J0")
		require.Error(t, err)
	})
}
