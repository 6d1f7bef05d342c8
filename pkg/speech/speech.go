// Package speech wraps the external speech-to-text and text-to-speech codec
// services consumed by the orchestrator. Both are black boxes; this package
// only adds the length- and failure-based synthesis fallback policy.
package speech

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Transcriber converts an audio blob to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts text to an audio blob using a voice profile.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// DefaultVoiceID is used when no per-worker voice preference exists and as the
// last-resort voice when a preferred synthesis fails.
const DefaultVoiceID = "v2/en_speaker_6"

// DefaultMaxPrimaryWords bounds how long a reply may be before synthesis falls
// back to the faster, lower-fidelity path.
const DefaultMaxPrimaryWords = 100

// FallbackSynthesizer routes short replies to the primary (high-fidelity)
// synthesizer and long ones to the fast path. Any failure retries on the
// primary path with the default voice.
type FallbackSynthesizer struct {
	Primary         Synthesizer
	Fast            Synthesizer
	MaxPrimaryWords int
}

var _ Synthesizer = &FallbackSynthesizer{}

func NewFallbackSynthesizer(primary, fast Synthesizer, maxPrimaryWords int) *FallbackSynthesizer {
	if maxPrimaryWords <= 0 {
		maxPrimaryWords = DefaultMaxPrimaryWords
	}
	return &FallbackSynthesizer{Primary: primary, Fast: fast, MaxPrimaryWords: maxPrimaryWords}
}

func (s *FallbackSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if s == nil || s.Primary == nil {
		return nil, errors.New("speech: synthesizer is not configured")
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	words := len(strings.Fields(text))
	first := s.Primary
	if words > s.MaxPrimaryWords && s.Fast != nil {
		log.Debug().Str("component", "speech").Int("words", words).Msg("reply too long for primary synthesis, using fast path")
		first = s.Fast
	}

	audio, err := first.Synthesize(ctx, text, voiceID)
	if err == nil {
		return audio, nil
	}
	log.Warn().Err(err).Str("component", "speech").Str("voice_id", voiceID).Msg("synthesis failed, retrying primary path with default voice")

	audio, retryErr := s.Primary.Synthesize(ctx, text, DefaultVoiceID)
	if retryErr != nil {
		return nil, errors.Wrap(retryErr, "speech: fallback synthesis")
	}
	return audio, nil
}
