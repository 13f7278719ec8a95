package cryptox_test

import (
	"strings"
	"testing"

	"github.com/abraham-of-london/circlegate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const testPepper = "unit-test-pepper-0123456789abcdef"

func TestNewHasherFailsClosed(t *testing.T) {
	t.Parallel()

	t.Run("rejects missing pepper", func(t *testing.T) {
		_, err := cryptox.NewHasher("")
		require.ErrorIs(t, err, cryptox.ErrPepperMissing)
	})

	t.Run("rejects short pepper", func(t *testing.T) {
		_, err := cryptox.NewHasher(strings.Repeat("x", cryptox.MinPepperLength-1))
		require.ErrorIs(t, err, cryptox.ErrPepperMissing)
	})

	t.Run("accepts minimum length", func(t *testing.T) {
		h, err := cryptox.NewHasher(strings.Repeat("x", cryptox.MinPepperLength))
		require.NoError(t, err)
		require.NotNil(t, h)
	})
}

func TestHashKey(t *testing.T) {
	t.Parallel()

	h, err := cryptox.NewHasher(testPepper)
	require.NoError(t, err)

	t.Run("deterministic", func(t *testing.T) {
		a, err := h.HashKey("some-access-key")
		require.NoError(t, err)
		b, err := h.HashKey("some-access-key")
		require.NoError(t, err)
		require.Equal(t, a, b)
		require.Len(t, a, 64) // hex-encoded SHA-256
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		a, err := h.HashKey("  some-access-key\n")
		require.NoError(t, err)
		b, err := h.HashKey("some-access-key")
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := h.HashKey("   ")
		require.ErrorIs(t, err, cryptox.ErrEmptyCredential)
	})

	t.Run("pepper changes the digest", func(t *testing.T) {
		other, err := cryptox.NewHasher(testPepper + "-rotated")
		require.NoError(t, err)

		a, err := h.HashKey("some-access-key")
		require.NoError(t, err)
		b, err := other.HashKey("some-access-key")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestHashEmail(t *testing.T) {
	t.Parallel()

	h, err := cryptox.NewHasher(testPepper)
	require.NoError(t, err)

	a, err := h.HashEmail("Person@Example.COM ")
	require.NoError(t, err)
	b, err := h.HashEmail("person@example.com")
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = h.HashEmail("")
	require.ErrorIs(t, err, cryptox.ErrEmptyCredential)
}
