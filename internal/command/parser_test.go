package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPermits = map[string]int{"admin": 0, "moder": 1, "dj": 50, "user": 100}

func newTestParser() *Parser {
	skip := &CommandSpec{Name: "skip", Permit: "dj", Threaded: false}
	skip.Flags = ExpandFlagAliases(nil)
	kick := &CommandSpec{
		Name:         "kick",
		Permit:       "moder",
		RequireValue: true,
		Threaded:     true,
	}
	kick.Flags = ExpandFlagAliases([]*FlagSpec{
		{Name: "reason", Permit: "moder", RequireValue: true},
	})
	registry := BuildRegistry([]*CommandSpec{skip, kick})
	return NewParser("-", registry)
}

func TestParseResolvesKnownCommand(t *testing.T) {
	p := newTestParser()
	out, err := p.Parse("-skip", testPermits["dj"], testPermits)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "skip", out[0].Spec.Name)
}

func TestParseUnknownCommand(t *testing.T) {
	p := newTestParser()
	_, err := p.Parse("-nope", testPermits["user"], testPermits)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindNoSuchCommand, pe.Kind)
}

func TestParseRejectsInsufficientPermit(t *testing.T) {
	p := newTestParser()
	_, err := p.Parse("-skip", testPermits["user"], testPermits)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindAccessRights, pe.Kind)
}

func TestParseRequiresValueWhenSpecDemandsIt(t *testing.T) {
	p := newTestParser()
	_, err := p.Parse("-kick", testPermits["moder"], testPermits)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindValueMissing, pe.Kind)
}

func TestParseResolvesFlagValue(t *testing.T) {
	p := newTestParser()
	out, err := p.Parse(`-kick bob --reason "being rude"`, testPermits["moder"], testPermits)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"bob"}, out[0].Values)
	fv, ok := out[0].Flags["reason"]
	require.True(t, ok)
	assert.True(t, fv.HasValue)
	assert.Equal(t, "being rude", fv.Value)
}

func TestParseUnknownFlag(t *testing.T) {
	p := newTestParser()
	_, err := p.Parse("-kick bob --nope", testPermits["moder"], testPermits)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindNoSuchFlag, pe.Kind)
}

func TestParseEmptyTextReturnsNothing(t *testing.T) {
	p := newTestParser()
	out, err := p.Parse("just chatting, no command here", testPermits["user"], testPermits)
	require.NoError(t, err)
	assert.Nil(t, out)
}
