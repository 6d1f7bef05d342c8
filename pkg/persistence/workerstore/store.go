// Package workerstore persists worker registrations and voice preferences.
// The schema is consumed, not owned: rows of {name, address, type,
// is_blacklisted} plus a voice preference table.
package workerstore

import (
	"context"

	"github.com/go-go-golems/mother/pkg/registry"
)

// Store is the persistence collaborator the orchestrator is seeded from.
type Store interface {
	// LoadActiveWorkers returns all non-blacklisted workers.
	LoadActiveWorkers(ctx context.Context) ([]registry.Worker, error)
	// VoiceForWorker returns the stored voice preference, or ("", nil) when
	// none exists.
	VoiceForWorker(ctx context.Context, name string) (string, error)
	// SaveVoice upserts the voice preference for a worker.
	SaveVoice(ctx context.Context, name, voiceID string) error
	// SaveWorker upserts a worker registration row.
	SaveWorker(ctx context.Context, w registry.Worker) error
	Close() error
}
