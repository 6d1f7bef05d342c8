package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPCodecTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcribe", r.URL.Path)
		var req transcribeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []byte{1, 2}, req.Audio)
		_ = json.NewEncoder(w).Encode(transcribeResponse{Text: "hello"})
	}))
	defer srv.Close()

	c, err := NewHTTPCodec(srv.URL, time.Second)
	require.NoError(t, err)

	text, err := c.Transcribe(context.Background(), []byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, "hello", text)
}

func TestHTTPCodecSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/synthesize", r.URL.Path)
		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "v2", req.VoiceID)
		_ = json.NewEncoder(w).Encode(synthesizeResponse{Audio: []byte("wav")})
	}))
	defer srv.Close()

	c, err := NewHTTPCodec(srv.URL, time.Second)
	require.NoError(t, err)

	audio, err := c.Synthesize(context.Background(), "hi", "v2")
	require.NoError(t, err)
	require.Equal(t, []byte("wav"), audio)
}

func TestHTTPCodecNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "codec down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewHTTPCodec(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Synthesize(context.Background(), "hi", "v2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
