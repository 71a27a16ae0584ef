package signedtoken

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	s := New("s")

	token := s.Sign(SessionSalt, "hello")
	value, ok := s.Verify(SessionSalt, token)

	assert.True(t, ok)
	assert.Equal(t, "hello", value)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	s := New("s")

	token := s.Sign(SessionSalt, "hello")
	_, ok := s.Verify(SessionSalt, token[:len(token)-1]+"x")

	assert.False(t, ok)
}

func TestVerifyRejectsWrongSalt(t *testing.T) {
	s := New("s")

	token := s.Sign(SessionSalt, "hello")
	_, ok := s.Verify(FlashSalt, token)

	assert.False(t, ok)
}

func TestVerifyRejectsMissingSeparator(t *testing.T) {
	s := New("s")

	_, ok := s.Verify(SessionSalt, "no-separator-here")

	assert.False(t, ok)
}

func TestNewSessionIDMatchesSpecFormat(t *testing.T) {
	s := New("s")
	pattern := regexp.MustCompile(`^[A-Za-z0-9_-]{22}--[A-Za-z0-9_-]{43}$`)

	sid, err := s.NewSessionID()
	require.NoError(t, err)
	assert.Regexp(t, pattern, sid)

	value, ok := s.Verify(SessionSalt, sid)
	assert.True(t, ok)
	assert.Len(t, value, 22)
}

func TestNewSessionIDIsUnique(t *testing.T) {
	s := New("s")

	a, err := s.NewSessionID()
	require.NoError(t, err)
	b, err := s.NewSessionID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
