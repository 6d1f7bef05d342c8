package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterWorkerReplaceSemantics(t *testing.T) {
	r := New()
	r.RegisterWorker(Worker{Name: "llmA", Address: "10.0.0.1:9000", Type: "chat", VoiceID: "v1", Enabled: true})
	r.RegisterWorker(Worker{Name: "llmA", Address: "10.0.0.2:9000", Type: "chat", Enabled: true})

	w, ok := r.Worker("llmA")
	require.True(t, ok)
	require.Equal(t, "10.0.0.2:9000", w.Address)
	// replacement preserves nothing from the old entry
	require.Equal(t, "", w.VoiceID)
	require.Len(t, r.ActiveWorkers(), 1)
}

func TestSetWorkerVoice(t *testing.T) {
	r := New()
	require.False(t, r.SetWorkerVoice("ghost", "v2"))

	r.RegisterWorker(Worker{Name: "llmA", Enabled: true})
	require.True(t, r.SetWorkerVoice("llmA", "v2"))

	w, _ := r.Worker("llmA")
	require.Equal(t, "v2", w.VoiceID)
}

func TestIsActive(t *testing.T) {
	r := New()
	r.RegisterWorker(Worker{Name: "on", Enabled: true})
	r.RegisterWorker(Worker{Name: "off", Enabled: false})

	require.True(t, r.IsActive("on"))
	require.False(t, r.IsActive("off"))
	require.False(t, r.IsActive("missing"))
}

func TestUnregisterUserIdempotent(t *testing.T) {
	r := New()
	r.RegisterUser(User{ID: "u1", Nickname: "alice"})
	require.Equal(t, 1, r.UserCount())

	r.UnregisterUser("u1")
	r.UnregisterUser("u1")
	require.Equal(t, 0, r.UserCount())

	_, ok := r.User("u1")
	require.False(t, ok)
}

func TestRegisterUserReconnectOverwrites(t *testing.T) {
	r := New()
	r.RegisterUser(User{ID: "u1", Nickname: "alice"})
	r.RegisterUser(User{ID: "u1", Nickname: "alice-2"})

	u, ok := r.User("u1")
	require.True(t, ok)
	require.Equal(t, "alice-2", u.Nickname)
	require.Equal(t, 1, r.UserCount())
}
