package workerstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mother/pkg/registry"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mother.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadActiveWorkersSkipsBlacklisted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveWorker(ctx, registry.Worker{Name: "llmA", Address: "10.0.0.1", Type: "chat", Enabled: true}))
	require.NoError(t, s.SaveWorker(ctx, registry.Worker{Name: "llmB", Address: "10.0.0.2", Type: "chat", Enabled: false}))

	workers, err := s.LoadActiveWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	require.Equal(t, "llmA", workers[0].Name)
	require.True(t, workers[0].Enabled)
}

func TestVoicePreferenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	voice, err := s.VoiceForWorker(ctx, "llmA")
	require.NoError(t, err)
	require.Equal(t, "", voice)

	require.NoError(t, s.SaveVoice(ctx, "llmA", "v2"))
	require.NoError(t, s.SaveVoice(ctx, "llmA", "v3"))

	voice, err = s.VoiceForWorker(ctx, "llmA")
	require.NoError(t, err)
	require.Equal(t, "v3", voice)
}

func TestLoadActiveWorkersAttachesVoice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveWorker(ctx, registry.Worker{Name: "llmA", Address: "10.0.0.1", Type: "chat", Enabled: true}))
	require.NoError(t, s.SaveVoice(ctx, "llmA", "v2"))

	workers, err := s.LoadActiveWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	require.Equal(t, "v2", workers[0].VoiceID)
}

func TestSaveWorkerReplaceSemantics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveWorker(ctx, registry.Worker{Name: "llmA", Address: "10.0.0.1", Type: "chat", Enabled: true}))
	require.NoError(t, s.SaveWorker(ctx, registry.Worker{Name: "llmA", Address: "10.0.0.9", Type: "code", Enabled: true}))

	workers, err := s.LoadActiveWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	require.Equal(t, "10.0.0.9", workers[0].Address)
	require.Equal(t, "code", workers[0].Type)
}
