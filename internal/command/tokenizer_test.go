package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagNames(flags []RawFlag) []string {
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.Name
	}
	return names
}

func TestTokenizeSimpleCommand(t *testing.T) {
	out, err := Tokenize("-", "-m")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "m", out[0].Name)
	assert.Empty(t, out[0].Values)
	assert.Empty(t, out[0].Flags)
}

func TestTokenizeCommandWithValue(t *testing.T) {
	out, err := Tokenize("-", "-m test")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"test"}, out[0].Values)
}

func TestTokenizeBareFlag(t *testing.T) {
	out, err := Tokenize("-", "-m test --flag")
	require.NoError(t, err)
	require.Len(t, out[0].Flags, 1)
	assert.Equal(t, "flag", out[0].Flags[0].Name)
	assert.Empty(t, out[0].Flags[0].Values)
}

func TestTokenizeFlagWithValue(t *testing.T) {
	out, err := Tokenize("-", "-m test --flag flag_value")
	require.NoError(t, err)
	assert.Equal(t, []string{"flag_value"}, out[0].Flags[0].Values)
}

func TestTokenizeFlagWithMultipleValues(t *testing.T) {
	out, err := Tokenize("-", "-m test --flag flag_value1 flag_value2")
	require.NoError(t, err)
	assert.Equal(t, []string{"flag_value1", "flag_value2"}, out[0].Flags[0].Values)
}

func TestTokenizeDelimiterSplitsCommands(t *testing.T) {
	out, err := Tokenize("-", "-m test --flag flag_value | -s")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m", out[0].Name)
	assert.Equal(t, []string{"flag_value"}, out[0].Flags[0].Values)
	assert.Equal(t, "s", out[1].Name)
}

func TestTokenizeMultipleLongFlags(t *testing.T) {
	out, err := Tokenize("-", "-m --flag1 flag1_value --flag2 flag2_value --flag3")
	require.NoError(t, err)
	require.Len(t, out[0].Flags, 3)
	assert.Equal(t, []string{"flag1", "flag2", "flag3"}, flagNames(out[0].Flags))
	assert.Equal(t, []string{"flag1_value"}, out[0].Flags[0].Values)
	assert.Equal(t, []string{"flag2_value"}, out[0].Flags[1].Values)
	assert.Empty(t, out[0].Flags[2].Values)
}

func TestTokenizeUnexpectedTokenAfterFlagCluster(t *testing.T) {
	_, err := Tokenize("-", "-m test -abc value")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindUnexpectedToken, pe.Kind)
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	_, err := Tokenize("-", `-m "value`)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindEnclosing, pe.Kind)
}

func TestTokenizeMultiTokenQuotedValue(t *testing.T) {
	out, err := Tokenize("-", `-m "hello there" --flag "a b c"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello there"}, out[0].Values)
	assert.Equal(t, []string{"a b c"}, out[0].Flags[0].Values)
}

func TestTokenizeEscapedQuoteIsLiteral(t *testing.T) {
	out, err := Tokenize("-", `-m \"quoted`)
	require.NoError(t, err)
	assert.Equal(t, []string{`"quoted`}, out[0].Values)
}
