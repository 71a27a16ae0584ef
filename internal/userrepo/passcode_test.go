package userrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasscodeVerifiesCorrectly(t *testing.T) {
	encoded, err := HashPasscode("pass34")
	require.NoError(t, err)

	assert.True(t, VerifyPasscode("pass34", encoded))
	assert.False(t, VerifyPasscode("wrong", encoded))
}

func TestHashPasscodeSaltsDiffer(t *testing.T) {
	a, err := HashPasscode("pass34")
	require.NoError(t, err)
	b, err := HashPasscode("pass34")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyPasscodeRejectsMalformedHash(t *testing.T) {
	assert.False(t, VerifyPasscode("pass34", "not-a-valid-hash"))
	assert.False(t, VerifyPasscode("pass34", "bcrypt$10$salt$hash"))
}
