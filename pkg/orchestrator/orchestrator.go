// Package orchestrator routes chat messages between connected users and
// registered AI workers. It composes the registry, the context store, the
// directive parser and the cancellable query queue, and is the single place
// routing decisions are made.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mother/pkg/chat"
	"github.com/go-go-golems/mother/pkg/contextstore"
	"github.com/go-go-golems/mother/pkg/directive"
	"github.com/go-go-golems/mother/pkg/persistence/workerstore"
	"github.com/go-go-golems/mother/pkg/queryqueue"
	"github.com/go-go-golems/mother/pkg/registry"
	"github.com/go-go-golems/mother/pkg/speech"
)

// Request is one enriched unit of work handed to the external processing
// capability.
type Request struct {
	RequestID  string
	UserID     string
	WorkerName string
	// Prompt carries the rendered conversation history plus the new query.
	Prompt string
	// RawPrompt is the user's original text.
	RawPrompt string
}

// ProcessFunc is the external processing capability (AI inference behind a
// worker endpoint). It may block for seconds; the queue's drain loop awaits it.
type ProcessFunc func(ctx context.Context, req Request) (string, error)

// Lifecycle states.
const (
	stateUninitialized int32 = iota
	stateStarting
	stateRunning
	stateStopped
)

// Config wires the orchestrator's collaborators.
type Config struct {
	// Process is required.
	Process ProcessFunc
	// Bus is the queue transport; defaults to an in-memory one.
	Bus queryqueue.PubSub
	// Store is the optional persistence collaborator for worker registrations
	// and voice preferences.
	Store workerstore.Store
	// Synthesizer is the optional text-to-speech collaborator.
	Synthesizer speech.Synthesizer

	ContextWindow    int
	MaxConversations int
}

// Orchestrator is the routing core. Construct with New, pass by reference to
// every component that needs it, Start once.
type Orchestrator struct {
	registry *registry.Registry
	contexts *contextstore.Store
	queue    *queryqueue.Queue
	store    workerstore.Store
	synth    speech.Synthesizer
	process  ProcessFunc

	state atomic.Int32

	mu        sync.Mutex
	cancel    context.CancelFunc
	multicast map[string][]string
}

// New constructs an orchestrator in the uninitialized state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Process == nil {
		return nil, errors.New("orchestrator: process capability is required")
	}
	bus := cfg.Bus
	if bus == nil {
		var err error
		bus, err = queryqueue.NewBackend(queryqueue.RedisSettings{})
		if err != nil {
			return nil, errors.Wrap(err, "orchestrator: build queue backend")
		}
	}
	contexts, err := contextstore.New(cfg.ContextWindow, cfg.MaxConversations)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		registry:  registry.New(),
		contexts:  contexts,
		store:     cfg.Store,
		synth:     cfg.Synthesizer,
		process:   cfg.Process,
		multicast: map[string][]string{},
	}
	o.queue, err = queryqueue.New(bus, o.processUnit, o.handleResult)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Start loads persisted workers and launches the drain loop. Startup is
// idempotent: a concurrent second Start while one is in progress (or after the
// orchestrator is running) is ignored, not queued.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o == nil {
		return errors.New("orchestrator: nil")
	}
	if !o.state.CompareAndSwap(stateUninitialized, stateStarting) {
		log.Debug().Str("component", "orchestrator").Msg("start ignored, already starting or started")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	if o.store != nil {
		workers, err := o.store.LoadActiveWorkers(runCtx)
		if err != nil {
			cancel()
			o.state.CompareAndSwap(stateStarting, stateUninitialized)
			return errors.Wrap(err, "orchestrator: load workers")
		}
		for _, w := range workers {
			o.registry.RegisterWorker(w)
		}
		log.Info().Str("component", "orchestrator").Int("count", len(workers)).Msg("registered persisted workers")
	}

	if err := o.queue.Start(runCtx); err != nil {
		cancel()
		o.state.CompareAndSwap(stateStarting, stateUninitialized)
		return err
	}

	// Stop may have fired while startup was loading; it wins.
	if !o.state.CompareAndSwap(stateStarting, stateRunning) {
		cancel()
		log.Info().Str("component", "orchestrator").Msg("stopped during startup")
		return nil
	}
	log.Info().Str("component", "orchestrator").Msg("orchestrator running")
	return nil
}

// Stop halts the drain loop. Registrations and messages arriving afterwards
// are no-ops.
func (o *Orchestrator) Stop() {
	if o == nil {
		return
	}
	o.state.Store(stateStopped)
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once the queue's drain loop has fully stopped.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.queue.Done()
}

func (o *Orchestrator) isRunning() bool {
	return o != nil && o.state.Load() == stateRunning
}

// RegisterUser stores a connected user. A no-op before startup completes.
func (o *Orchestrator) RegisterUser(u registry.User) {
	if !o.isRunning() {
		log.Warn().Str("component", "orchestrator").Str("user_id", u.ID).Msg("register user ignored, orchestrator not running")
		return
	}
	o.registry.RegisterUser(u)
}

// UnregisterUser removes a user and its routing rule so no reply is ever sent
// on a dead connection. Idempotent.
func (o *Orchestrator) UnregisterUser(id string) {
	if o == nil {
		return
	}
	o.registry.UnregisterUser(id)
	o.mu.Lock()
	delete(o.multicast, id)
	o.mu.Unlock()
}

// RegisterWorker stores a worker with replace semantics and persists the
// registration. A no-op before startup completes.
func (o *Orchestrator) RegisterWorker(ctx context.Context, w registry.Worker) {
	if !o.isRunning() {
		log.Warn().Str("component", "orchestrator").Str("worker", w.Name).Msg("register worker ignored, orchestrator not running")
		return
	}
	o.registry.RegisterWorker(w)
	if o.store != nil {
		if err := o.store.SaveWorker(ctx, w); err != nil {
			log.Error().Err(err).Str("component", "orchestrator").Str("worker", w.Name).Msg("persist worker failed")
		}
	}
}

// SetWorkerVoice assigns a voice profile, writing the preference through to
// the persistence collaborator.
func (o *Orchestrator) SetWorkerVoice(ctx context.Context, name, voiceID string) bool {
	if !o.registry.SetWorkerVoice(name, voiceID) {
		return false
	}
	if o.store != nil {
		if err := o.store.SaveVoice(ctx, name, voiceID); err != nil {
			log.Error().Err(err).Str("component", "orchestrator").Str("worker", name).Msg("persist voice failed")
		}
	}
	return true
}

// GetContext renders the conversation history for a pair. Used by the
// enrichment step and exposed so the transport adapter can pre-populate
// outgoing requests.
func (o *Orchestrator) GetContext(userID, workerName string) string {
	if o == nil {
		return ""
	}
	return o.contexts.Render(userID, workerName)
}

// CancelRequest marks an in-flight or queued request cancelled.
func (o *Orchestrator) CancelRequest(requestID string) bool {
	if o == nil {
		return false
	}
	return o.queue.Cancel(requestID)
}

// Registry exposes the worker/user registry, read-mostly, for the transport.
func (o *Orchestrator) Registry() *registry.Registry {
	if o == nil {
		return nil
	}
	return o.registry
}

// ProcessMessage routes one inbound message. Every failure path is converted
// into a reply on the sender's connection; no error escapes as a fault.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg chat.Message) {
	if o == nil {
		return
	}
	if !o.isRunning() {
		o.sendToUser(ctx, msg.Sender, chat.Reply{Type: chat.ReplyTypeError, Error: "orchestrator is not running"})
		return
	}

	d, matched, err := directive.TryParse(msg.Content)
	if matched {
		if err != nil {
			o.sendToUser(ctx, msg.Sender, chat.Reply{Type: chat.ReplyTypeError, Error: "malformed directive: expected " + directive.Prefix + ":ACTION(params)"})
			return
		}
		o.handleDirective(ctx, msg, d)
		return
	}

	targets := o.routeTargets(msg)
	if len(targets) == 0 {
		o.sendToUser(ctx, msg.Sender, chat.Reply{Type: chat.ReplyTypeError, Error: "no worker named and no multi-worker session enabled"})
		return
	}
	for _, worker := range targets {
		if !o.registry.IsActive(worker) {
			o.sendToUser(ctx, msg.Sender, chat.Reply{Type: chat.ReplyTypeError, Worker: worker, Error: "unknown worker: " + worker})
			continue
		}
		o.enqueueChat(ctx, msg, worker)
	}
}

// routeTargets resolves the worker set for a chat turn: the user's
// multi-worker session when one is enabled, otherwise the named worker.
func (o *Orchestrator) routeTargets(msg chat.Message) []string {
	o.mu.Lock()
	session := append([]string(nil), o.multicast[msg.Sender]...)
	o.mu.Unlock()
	if len(session) > 0 {
		return session
	}
	if strings.TrimSpace(msg.WorkerName) == "" {
		return nil
	}
	return []string{msg.WorkerName}
}

func (o *Orchestrator) enqueueChat(ctx context.Context, msg chat.Message, worker string) {
	history := o.contexts.Render(msg.Sender, worker)
	unit := &queryqueue.WorkUnit{
		UserID:     msg.Sender,
		WorkerName: worker,
		Payload: queryqueue.Payload{
			Prompt:      enrichPrompt(history, msg.Content),
			RawPrompt:   msg.Content,
			VoiceOutput: msg.VoiceOutput,
		},
	}
	id, err := o.queue.Enqueue(unit)
	if err != nil {
		log.Error().Err(err).Str("component", "orchestrator").Str("user_id", msg.Sender).Str("worker", worker).Msg("enqueue failed")
		o.sendToUser(ctx, msg.Sender, chat.Reply{Type: chat.ReplyTypeError, Worker: worker, Error: "could not enqueue request"})
		return
	}
	o.sendToUser(ctx, msg.Sender, chat.Reply{Type: chat.ReplyTypeQueued, RequestID: id, Worker: worker})
}

// enrichPrompt prefixes the outgoing request with prior conversation history.
func enrichPrompt(history, prompt string) string {
	if history == "" {
		return prompt
	}
	return "The following conversation history provides context for the current query:\n\n" +
		history + "\n\nCurrent query: " + prompt
}

// processUnit is the queue's processing step.
func (o *Orchestrator) processUnit(ctx context.Context, unit *queryqueue.WorkUnit) (string, error) {
	return o.process(ctx, Request{
		RequestID:  unit.RequestID,
		UserID:     unit.UserID,
		WorkerName: unit.WorkerName,
		Prompt:     unit.Payload.Prompt,
		RawPrompt:  unit.Payload.RawPrompt,
	})
}

// handleResult applies one unit's outcome. Context is mutated only for
// completed units; cancelled units neither mutate context nor produce a reply.
func (o *Orchestrator) handleResult(ctx context.Context, unit *queryqueue.WorkUnit, res queryqueue.Result) {
	switch res.Outcome {
	case queryqueue.OutcomeCancelled:
		log.Debug().Str("component", "orchestrator").Str("request_id", unit.RequestID).Msg("discarding cancelled unit")
	case queryqueue.OutcomeFailed:
		log.Warn().Err(res.Err).Str("component", "orchestrator").Str("request_id", unit.RequestID).
			Str("worker", unit.WorkerName).Msg("processing failed")
		o.sendToUser(ctx, unit.UserID, chat.Reply{
			Type:      chat.ReplyTypeError,
			RequestID: unit.RequestID,
			Worker:    unit.WorkerName,
			Error:     "processing failed: " + res.Err.Error(),
		})
	case queryqueue.OutcomeCompleted:
		o.contexts.Append(unit.UserID, unit.WorkerName, contextstore.Turn{Role: contextstore.RoleUser, Text: unit.Payload.RawPrompt})
		o.contexts.Append(unit.UserID, unit.WorkerName, contextstore.Turn{Role: contextstore.RoleWorker, Text: res.Reply})

		reply := chat.Reply{
			Type:      chat.ReplyTypeAnswer,
			RequestID: unit.RequestID,
			Worker:    unit.WorkerName,
			Text:      res.Reply,
		}
		if unit.Payload.VoiceOutput {
			o.attachAudio(ctx, unit.WorkerName, &reply)
		}
		o.sendToUser(ctx, unit.UserID, reply)
	}
}

// attachAudio synthesizes the reply text, consulting the stored voice
// preference lazily. Synthesis failures degrade to a text-only reply.
func (o *Orchestrator) attachAudio(ctx context.Context, workerName string, reply *chat.Reply) {
	if o.synth == nil {
		return
	}
	voiceID := ""
	if o.store != nil {
		v, err := o.store.VoiceForWorker(ctx, workerName)
		if err != nil {
			log.Warn().Err(err).Str("component", "orchestrator").Str("worker", workerName).Msg("voice lookup failed")
		} else {
			voiceID = v
		}
	}
	if voiceID == "" {
		if w, ok := o.registry.Worker(workerName); ok {
			voiceID = w.VoiceID
		}
	}
	audio, err := o.synth.Synthesize(ctx, reply.Text, voiceID)
	if err != nil {
		log.Warn().Err(err).Str("component", "orchestrator").Str("worker", workerName).Msg("synthesis failed, sending text only")
		return
	}
	reply.Audio = audio
	reply.VoiceID = voiceID
}

// sendToUser delivers a reply. A transport failure unregisters the user and
// never propagates.
func (o *Orchestrator) sendToUser(ctx context.Context, userID string, reply chat.Reply) {
	u, ok := o.registry.User(userID)
	if !ok || u.Conn == nil {
		log.Debug().Str("component", "orchestrator").Str("user_id", userID).Str("type", reply.Type).Msg("dropping reply for disconnected user")
		return
	}
	if err := u.Conn.Send(ctx, reply); err != nil {
		log.Warn().Err(err).Str("component", "orchestrator").Str("user_id", userID).Msg("send failed, unregistering user")
		o.UnregisterUser(userID)
		_ = u.Conn.Close()
	}
}
