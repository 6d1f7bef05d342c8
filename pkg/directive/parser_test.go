package directive

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTryParseSetVoice(t *testing.T) {
	d, matched, err := TryParse("MOTHERREALM:SETVOICE(llmA,v2)")
	require.NoError(t, err)
	require.True(t, matched)
	require.Equal(t, ActionSetVoice, d.Action)
	require.Equal(t, []string{"llmA", "v2"}, d.Params)
}

func TestTryParsePlainTextIsNotADirective(t *testing.T) {
	d, matched, err := TryParse("hello")
	require.NoError(t, err)
	require.False(t, matched)
	require.Nil(t, d)
}

func TestTryParseMalformed(t *testing.T) {
	for _, text := range []string{
		"MOTHERREALM:BROKEN",
		"MOTHERREALM:(a,b)",
		"MOTHERREALM:SETVOICE(a,b",
	} {
		d, matched, err := TryParse(text)
		require.True(t, matched, text)
		require.Nil(t, d, text)
		require.True(t, errors.Is(err, ErrMalformed), text)
	}
}

func TestTryParseEmptyParams(t *testing.T) {
	d, matched, err := TryParse("MOTHERREALM:RESETCONTEXT()")
	require.NoError(t, err)
	require.True(t, matched)
	require.Equal(t, ActionResetContext, d.Action)
	require.NotNil(t, d.Params)
	require.Empty(t, d.Params)
}

func TestTryParseLegacyPrivateChatAlias(t *testing.T) {
	d, matched, err := TryParse("MOTHERREALM:debugwindowoutONLYLLMONLYPRIVATECHAT(llmA,llmB)")
	require.NoError(t, err)
	require.True(t, matched)
	require.Equal(t, ActionPrivateChat, d.Action)
	require.Equal(t, "debugwindowoutONLYLLMONLYPRIVATECHAT", d.RawAction)
	require.Equal(t, []string{"llmA", "llmB"}, d.Params)
}

func TestTryParseUnknownActionIsWellFormed(t *testing.T) {
	d, matched, err := TryParse("MOTHERREALM:TELEPORT(x)")
	require.NoError(t, err)
	require.True(t, matched)
	require.Equal(t, ActionUnrecognized, d.Action)
	require.Equal(t, "TELEPORT", d.RawAction)
	require.Equal(t, []string{"x"}, d.Params)
}

func TestTryParseParamsAreNotTrimmed(t *testing.T) {
	d, _, err := TryParse("MOTHERREALM:SETVOICE( llmA , v2 )")
	require.NoError(t, err)
	require.Equal(t, []string{" llmA ", " v2 "}, d.Params)
}
