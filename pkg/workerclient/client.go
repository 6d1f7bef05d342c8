// Package workerclient forwards enriched queries to worker node endpoints
// over HTTP. It is the concrete processing capability handed to the queue;
// the orchestrator itself never performs inference.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/mother/pkg/orchestrator"
	"github.com/go-go-golems/mother/pkg/registry"
)

// WorkerLookup resolves a worker name to its registration.
type WorkerLookup interface {
	Worker(name string) (registry.Worker, bool)
}

// Client posts queries to worker addresses.
type Client struct {
	lookup WorkerLookup
	http   *http.Client
}

const defaultTimeout = 120 * time.Second

func New(lookup WorkerLookup, timeout time.Duration) (*Client, error) {
	if lookup == nil {
		return nil, errors.New("workerclient: worker lookup is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		lookup: lookup,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"user_id"`
}

type generateResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// Process implements orchestrator.ProcessFunc.
func (c *Client) Process(ctx context.Context, req orchestrator.Request) (string, error) {
	w, ok := c.lookup.Worker(req.WorkerName)
	if !ok {
		return "", errors.Errorf("workerclient: worker %q is not registered", req.WorkerName)
	}

	body, err := json.Marshal(generateRequest{Prompt: req.Prompt, UserID: req.UserID})
	if err != nil {
		return "", errors.Wrap(err, "workerclient: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Address+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "workerclient: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrapf(err, "workerclient: call worker %q", req.WorkerName)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "workerclient: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("workerclient: worker %q returned %d: %s", req.WorkerName, resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errors.Wrap(err, "workerclient: decode response")
	}
	if out.Error != "" {
		return "", errors.Errorf("workerclient: worker %q failed: %s", req.WorkerName, out.Error)
	}
	return out.Reply, nil
}
