package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, 20, cfg.ContextWindow)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mother.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9999"
context_window: 5
redis:
  enabled: true
  addr: "redis:6379"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, 5, cfg.ContextWindow)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	// untouched keys keep defaults
	require.Equal(t, 100, cfg.MaxPrimaryWords)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MOTHER_ADDR", ":7777")
	t.Setenv("MOTHER_ROSTER_PATH", "/etc/mother/workers.yaml")
	t.Setenv("MOTHER_SPEECH_PRIMARY_URL", "http://bark:5000")
	t.Setenv("MOTHER_SPEECH_TRANSCRIBE_URL", "http://whisper:5001")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Addr)
	require.Equal(t, "/etc/mother/workers.yaml", cfg.RosterPath)
	require.Equal(t, "http://bark:5000", cfg.Speech.PrimaryURL)
	require.Equal(t, "http://whisper:5001", cfg.Speech.TranscribeURL)
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers:
  - name: llmA
    address: http://10.0.0.1:9000
    type: chat
    voice: v2
  - name: llmB
    address: http://10.0.0.2:9000
    type: code
    disabled: true
`), 0o600))

	workers, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	require.Equal(t, "llmA", workers[0].Name)
	require.Equal(t, "v2", workers[0].VoiceID)
	require.True(t, workers[0].Enabled)
	require.False(t, workers[1].Enabled)
}

func TestLoadRosterRejectsNamelessWorker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  - address: http://x\n"), 0o600))

	_, err := LoadRoster(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "without a name")
}
