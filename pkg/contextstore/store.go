// Package contextstore keeps bounded per (user, worker) conversation history.
// It is a pure in-memory data structure; the orchestrator is the only writer.
package contextstore

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Role identifies which side of the conversation produced a turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleWorker Role = "worker"
)

// Turn is a single utterance in a conversation.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

type history struct {
	turns []Turn
}

// Store holds conversation windows keyed by (userID, workerName). Each window
// keeps at most Window turns, evicting the oldest first. The total number of
// live conversations is capped by an LRU so abandoned pairs do not accumulate
// for the life of the process.
type Store struct {
	mu     sync.RWMutex
	window int
	convs  *lru.Cache[key, *history]
}

type key struct {
	userID string
	worker string
}

const (
	// DefaultWindow is the per-conversation turn bound when none is configured.
	DefaultWindow = 20
	// DefaultMaxConversations caps how many (user, worker) pairs are retained.
	DefaultMaxConversations = 1024
)

// New creates a store with the given per-conversation turn window and a cap on
// the number of retained conversations.
func New(window, maxConversations int) (*Store, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxConversations <= 0 {
		maxConversations = DefaultMaxConversations
	}
	convs, err := lru.New[key, *history](maxConversations)
	if err != nil {
		return nil, errors.Wrap(err, "contextstore: create conversation cache")
	}
	return &Store{window: window, convs: convs}, nil
}

// Append adds a turn to the (userID, workerName) conversation, evicting the
// oldest turn once the window is exceeded.
func (s *Store) Append(userID, workerName string, turn Turn) {
	if s == nil {
		return
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	k := key{userID: userID, worker: workerName}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.convs.Get(k)
	if !ok {
		h = &history{}
		s.convs.Add(k, h)
	}
	h.turns = append(h.turns, turn)
	if overflow := len(h.turns) - s.window; overflow > 0 {
		h.turns = append([]Turn(nil), h.turns[overflow:]...)
	}
}

// Get returns the ordered history for a pair. A missing conversation is a
// normal first-turn state and yields an empty slice, never an error.
func (s *Store) Get(userID, workerName string) []Turn {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.convs.Get(key{userID: userID, worker: workerName})
	if !ok {
		return nil
	}
	return append([]Turn(nil), h.turns...)
}

// Render joins the history into a single transcript for prompt injection.
// Identical contents always render identically.
func (s *Store) Render(userID, workerName string) string {
	turns := s.Get(userID, workerName)
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

// Clear drops the conversation for a pair.
func (s *Store) Clear(userID, workerName string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs.Remove(key{userID: userID, worker: workerName})
}

// ClearUser drops every conversation belonging to a user.
func (s *Store) ClearUser(userID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.convs.Keys() {
		if k.userID == userID {
			s.convs.Remove(k)
		}
	}
}

// Len reports the number of turns currently held for a pair.
func (s *Store) Len(userID, workerName string) int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.convs.Peek(key{userID: userID, worker: workerName})
	if !ok {
		return 0
	}
	return len(h.turns)
}
