package auth

import (
	"strings"
	"testing"

	"TodoAPI/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", hash)

	assert.True(t, h.Verify("pw1", hash))
	assert.False(t, h.Verify("pw2", hash))
	assert.False(t, h.Verify("pw1", "not-a-hash"))

	again, err := h.Hash("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes are salted")
}

func TestBcryptHasherNeedsRehash(t *testing.T) {
	old := NewBcryptHasher(bcrypt.MinCost)
	hash, err := old.Hash("pw1")
	require.NoError(t, err)

	assert.False(t, old.NeedsRehash(hash))
	assert.True(t, NewBcryptHasher(bcrypt.MinCost+1).NeedsRehash(hash))
	assert.True(t, old.NeedsRehash("garbage"))
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
}

func TestBcryptHasherRejectsLongPasswords(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes))
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// 72 characters, 144 bytes
	_, err = h.Hash(strings.Repeat("é", MaxPasswordBytes))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
