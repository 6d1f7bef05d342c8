package speech

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type stubSynth struct {
	calls []string
	fail  bool
	out   []byte
}

func (s *stubSynth) Synthesize(_ context.Context, text, voiceID string) ([]byte, error) {
	s.calls = append(s.calls, voiceID)
	if s.fail {
		return nil, errors.New("synth unavailable")
	}
	if s.out != nil {
		return s.out, nil
	}
	return []byte(text), nil
}

func TestFallbackSynthesizerShortTextUsesPrimary(t *testing.T) {
	primary := &stubSynth{out: []byte("hi-fi")}
	fast := &stubSynth{out: []byte("lo-fi")}
	s := NewFallbackSynthesizer(primary, fast, 5)

	audio, err := s.Synthesize(context.Background(), "short reply", "v9")
	require.NoError(t, err)
	require.Equal(t, []byte("hi-fi"), audio)
	require.Equal(t, []string{"v9"}, primary.calls)
	require.Empty(t, fast.calls)
}

func TestFallbackSynthesizerLongTextUsesFastPath(t *testing.T) {
	primary := &stubSynth{out: []byte("hi-fi")}
	fast := &stubSynth{out: []byte("lo-fi")}
	s := NewFallbackSynthesizer(primary, fast, 3)

	audio, err := s.Synthesize(context.Background(), strings.Repeat("word ", 10), "v9")
	require.NoError(t, err)
	require.Equal(t, []byte("lo-fi"), audio)
	require.Empty(t, primary.calls)
	require.Equal(t, []string{"v9"}, fast.calls)
}

func TestFallbackSynthesizerFailureRetriesPrimaryWithDefaultVoice(t *testing.T) {
	primary := &stubSynth{out: []byte("hi-fi")}
	fast := &stubSynth{fail: true}
	s := NewFallbackSynthesizer(primary, fast, 1)

	audio, err := s.Synthesize(context.Background(), "way too many words here", "v9")
	require.NoError(t, err)
	require.Equal(t, []byte("hi-fi"), audio)
	require.Equal(t, []string{"v9"}, fast.calls)
	require.Equal(t, []string{DefaultVoiceID}, primary.calls)
}

func TestFallbackSynthesizerEmptyVoiceDefaults(t *testing.T) {
	primary := &stubSynth{}
	s := NewFallbackSynthesizer(primary, nil, 100)

	_, err := s.Synthesize(context.Background(), "hello", "")
	require.NoError(t, err)
	require.Equal(t, []string{DefaultVoiceID}, primary.calls)
}
