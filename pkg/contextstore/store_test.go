package contextstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreAppendEvictsOldestFirst(t *testing.T) {
	s, err := New(3, 0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		s.Append("u1", "w1", Turn{Role: RoleUser, Text: fmt.Sprintf("msg-%d", i)})
	}

	turns := s.Get("u1", "w1")
	require.Len(t, turns, 3)
	require.Equal(t, "msg-2", turns[0].Text)
	require.Equal(t, "msg-3", turns[1].Text)
	require.Equal(t, "msg-4", turns[2].Text)
}

func TestStoreGetMissingConversation(t *testing.T) {
	s, err := New(3, 0)
	require.NoError(t, err)
	require.Empty(t, s.Get("nobody", "nothing"))
	require.Equal(t, "", s.Render("nobody", "nothing"))
}

func TestStoreRenderChronological(t *testing.T) {
	s, err := New(10, 0)
	require.NoError(t, err)
	now := time.Now()
	s.Append("u1", "w1", Turn{Role: RoleUser, Text: "hi", Timestamp: now})
	s.Append("u1", "w1", Turn{Role: RoleWorker, Text: "hello there", Timestamp: now.Add(time.Second)})

	require.Equal(t, "user: hi\nworker: hello there", s.Render("u1", "w1"))
	// same contents render identically
	require.Equal(t, s.Render("u1", "w1"), s.Render("u1", "w1"))
}

func TestStoreClear(t *testing.T) {
	s, err := New(10, 0)
	require.NoError(t, err)
	s.Append("u1", "w1", Turn{Role: RoleUser, Text: "hi"})
	s.Append("u1", "w2", Turn{Role: RoleUser, Text: "hi"})

	s.Clear("u1", "w1")
	require.Equal(t, 0, s.Len("u1", "w1"))
	require.Equal(t, 1, s.Len("u1", "w2"))

	s.ClearUser("u1")
	require.Equal(t, 0, s.Len("u1", "w2"))
}

func TestStorePairsAreIndependent(t *testing.T) {
	s, err := New(2, 0)
	require.NoError(t, err)
	s.Append("u1", "w1", Turn{Role: RoleUser, Text: "a"})
	s.Append("u2", "w1", Turn{Role: RoleUser, Text: "b"})

	require.Equal(t, "user: a", s.Render("u1", "w1"))
	require.Equal(t, "user: b", s.Render("u2", "w1"))
}

func TestStoreConversationCap(t *testing.T) {
	s, err := New(5, 2)
	require.NoError(t, err)
	s.Append("u1", "w1", Turn{Role: RoleUser, Text: "a"})
	s.Append("u1", "w2", Turn{Role: RoleUser, Text: "b"})
	s.Append("u1", "w3", Turn{Role: RoleUser, Text: "c"})

	// oldest pair was evicted by the conversation cap
	require.Equal(t, 0, s.Len("u1", "w1"))
	require.Equal(t, 1, s.Len("u1", "w2"))
	require.Equal(t, 1, s.Len("u1", "w3"))
}
