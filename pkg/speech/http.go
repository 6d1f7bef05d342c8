package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPCodec talks to an external speech codec service exposing /transcribe
// and /synthesize endpoints.
type HTTPCodec struct {
	baseURL string
	http    *http.Client
}

var (
	_ Transcriber = &HTTPCodec{}
	_ Synthesizer = &HTTPCodec{}
)

func NewHTTPCodec(baseURL string, timeout time.Duration) (*HTTPCodec, error) {
	if baseURL == "" {
		return nil, errors.New("speech: codec base url is empty")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPCodec{baseURL: baseURL, http: &http.Client{Timeout: timeout}}, nil
}

type transcribeRequest struct {
	Audio []byte `json:"audio"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (c *HTTPCodec) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var out transcribeResponse
	if err := c.post(ctx, "/transcribe", transcribeRequest{Audio: audio}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

type synthesizeResponse struct {
	Audio []byte `json:"audio"`
}

func (c *HTTPCodec) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	var out synthesizeResponse
	if err := c.post(ctx, "/synthesize", synthesizeRequest{Text: text, VoiceID: voiceID}, &out); err != nil {
		return nil, err
	}
	return out.Audio, nil
}

func (c *HTTPCodec) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "speech: marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "speech: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "speech: call %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "speech: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("speech: codec returned %d: %s", resp.StatusCode, string(respBody))
	}
	return errors.Wrap(json.Unmarshal(respBody, out), "speech: decode response")
}
