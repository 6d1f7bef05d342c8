// Package transport adapts websocket connections to the orchestrator. It owns
// no routing decisions: inbound frames become chat messages or control calls,
// outbound replies are written back as JSON.
package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mother/pkg/chat"
	"github.com/go-go-golems/mother/pkg/directive"
	"github.com/go-go-golems/mother/pkg/orchestrator"
	"github.com/go-go-golems/mother/pkg/registry"
	"github.com/go-go-golems/mother/pkg/speech"
)

// Query mirrors the web client's query object.
type Query struct {
	Prompt      string `json:"prompt"`
	QueryType   string `json:"query_type"`
	ModelName   string `json:"model_name"`
	Audio       []byte `json:"audio,omitempty"`
	VoiceOutput bool   `json:"voice_output,omitempty"`
}

// Inbound is one frame received on a user connection.
type Inbound struct {
	Type      string   `json:"type"`
	Query     *Query   `json:"query,omitempty"`
	LLMName   string   `json:"llm_name,omitempty"`
	VoiceID   string   `json:"voice_id,omitempty"`
	LLMs      []string `json:"llms,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// Inbound frame types.
const (
	TypeSubmitQuery        = "submit_query"
	TypeSetVoice           = "mother_set_voice"
	TypeEnableConversation = "mother_enable_conversation"
	TypeCancelRequest      = "cancel_request"
)

// Handler upgrades websocket connections and pumps frames into the
// orchestrator for the lifetime of each connection.
type Handler struct {
	orch        *orchestrator.Orchestrator
	transcriber speech.Transcriber
	upgrader    websocket.Upgrader
}

func NewHandler(orch *orchestrator.Orchestrator, transcriber speech.Transcriber, upgrader websocket.Upgrader) *Handler {
	return &Handler{orch: orch, transcriber: transcriber, upgrader: upgrader}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.orch == nil {
		http.Error(w, "orchestrator not initialized", http.StatusServiceUnavailable)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = uuid.NewString()
	}
	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	if nickname == "" {
		nickname = userID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "transport").Msg("websocket upgrade failed")
		return
	}
	wsc := &wsConn{conn: conn}

	h.orch.RegisterUser(registry.User{ID: userID, Nickname: nickname, Conn: wsc})
	log.Info().Str("component", "transport").Str("user_id", userID).Str("nickname", nickname).Msg("user connected")

	defer func() {
		h.orch.UnregisterUser(userID)
		_ = wsc.Close()
		log.Info().Str("component", "transport").Str("user_id", userID).Msg("user disconnected")
	}()

	ctx := r.Context()
	for {
		var in Inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("component", "transport").Str("user_id", userID).Msg("read failed")
			}
			return
		}
		h.dispatch(ctx, userID, in, wsc)
	}
}

func (h *Handler) dispatch(ctx context.Context, userID string, in Inbound, wsc *wsConn) {
	switch in.Type {
	case TypeSubmitQuery:
		h.handleQuery(ctx, userID, in.Query, wsc)
	case TypeSetVoice:
		if ok := h.orch.SetWorkerVoice(ctx, in.LLMName, in.VoiceID); !ok {
			_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeVoiceSet, Worker: in.LLMName, Error: "unknown worker: " + in.LLMName})
			return
		}
		_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeVoiceSet, Worker: in.LLMName, VoiceID: in.VoiceID, Text: "voice assigned"})
	case TypeEnableConversation:
		if len(in.LLMs) < 2 {
			_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeError, Error: "enable_conversation needs at least two workers"})
			return
		}
		content := directive.Prefix + ":" + string(directive.ActionPrivateChat) + "(" + strings.Join(in.LLMs, ",") + ")"
		h.orch.ProcessMessage(ctx, chat.Message{Sender: userID, Content: content})
	case TypeCancelRequest:
		if ok := h.orch.CancelRequest(in.RequestID); !ok {
			_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeCancelResult, RequestID: in.RequestID, Error: "unknown or finished request"})
			return
		}
		_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeCancelResult, RequestID: in.RequestID, Text: "cancelled"})
	default:
		_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeError, Error: "unsupported message type: " + in.Type})
	}
}

func (h *Handler) handleQuery(ctx context.Context, userID string, q *Query, wsc *wsConn) {
	if q == nil {
		_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeError, Error: "missing query"})
		return
	}
	prompt := q.Prompt
	if q.QueryType == "speech" {
		if h.transcriber == nil {
			_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeError, Error: "speech input is not configured"})
			return
		}
		text, err := h.transcriber.Transcribe(ctx, q.Audio)
		if err != nil {
			log.Warn().Err(err).Str("component", "transport").Str("user_id", userID).Msg("transcription failed")
			_ = wsc.Send(ctx, chat.Reply{Type: chat.ReplyTypeError, Error: "could not transcribe audio"})
			return
		}
		prompt = text
	}
	h.orch.ProcessMessage(ctx, chat.Message{
		Sender:      userID,
		WorkerName:  q.ModelName,
		Content:     prompt,
		VoiceOutput: q.VoiceOutput,
	})
}

// wsConn is the outbound half of a websocket connection. gorilla/websocket
// allows one concurrent writer, so Send serializes writes.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ chat.Conn = &wsConn{}

func (c *wsConn) Send(_ context.Context, reply chat.Reply) error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(reply)
}

func (c *wsConn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
