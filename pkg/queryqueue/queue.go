// Package queryqueue provides the ordered, cancellable work queue that
// decouples inbound request arrival from processing. Admission is FIFO and a
// single drain loop per queue dequeues units, which serializes the heavy
// processing step while cheap operations elsewhere stay unblocked.
package queryqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Payload carries the request content through the queue.
type Payload struct {
	// Prompt is the context-enriched text handed to the processing step.
	Prompt string
	// RawPrompt is the user's original text, appended to context on success.
	RawPrompt string
	// VoiceOutput requests speech synthesis of the reply.
	VoiceOutput bool
}

// WorkUnit is one enqueued, cancellable unit of processing work. The queue
// owns it for its queue lifetime; ownership transfers to the processing step
// only for the duration of the call.
type WorkUnit struct {
	RequestID  string
	UserID     string
	WorkerName string
	Payload    Payload
	EnqueuedAt time.Time

	cancelled atomic.Bool
}

// Cancel marks the unit cancelled. Cancellation is level-triggered: in-flight
// processing is not interrupted, but the result is discarded.
func (u *WorkUnit) Cancel() {
	if u == nil {
		return
	}
	u.cancelled.Store(true)
}

// Cancelled reports whether the unit has been cancelled.
func (u *WorkUnit) Cancelled() bool {
	if u == nil {
		return false
	}
	return u.cancelled.Load()
}

// Outcome tags the result of processing one unit.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// Result is the tagged outcome of one unit.
type Result struct {
	Outcome Outcome
	Reply   string
	Err     error
}

// Processor is the externally supplied processing capability. It may be
// long-latency; the drain loop awaits it.
type Processor func(ctx context.Context, unit *WorkUnit) (string, error)

// Handler receives the result of every non-cancelled-before-dequeue unit.
type Handler func(ctx context.Context, unit *WorkUnit, res Result)

// PubSub is the delivery transport the queue rides on (in-memory Go channels
// or Redis Streams, see NewBackend).
type PubSub interface {
	message.Publisher
	message.Subscriber
}

const defaultTopic = "mother:queries"

// Queue is an ordered cancellable work queue with a single drain loop.
type Queue struct {
	bus     PubSub
	topic   string
	process Processor
	handle  Handler

	mu      sync.Mutex
	units   map[string]*WorkUnit
	started bool

	done chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithTopic overrides the delivery topic.
func WithTopic(topic string) Option {
	return func(q *Queue) { q.topic = topic }
}

// New builds a queue on the given transport. process is the external
// processing capability, handle receives every unit's result.
func New(bus PubSub, process Processor, handle Handler, opts ...Option) (*Queue, error) {
	if bus == nil {
		return nil, errors.New("queryqueue: bus is nil")
	}
	if process == nil {
		return nil, errors.New("queryqueue: processor is nil")
	}
	if handle == nil {
		return nil, errors.New("queryqueue: handler is nil")
	}
	q := &Queue{
		bus:     bus,
		topic:   defaultTopic,
		process: process,
		handle:  handle,
		units:   map[string]*WorkUnit{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue admits a unit and returns its request id, usable for cancellation.
func (q *Queue) Enqueue(unit *WorkUnit) (string, error) {
	if q == nil {
		return "", errors.New("queryqueue: queue is nil")
	}
	if unit == nil {
		return "", errors.New("queryqueue: unit is nil")
	}
	if unit.RequestID == "" {
		unit.RequestID = uuid.NewString()
	}
	if unit.EnqueuedAt.IsZero() {
		unit.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	q.units[unit.RequestID] = unit
	q.mu.Unlock()

	msg := message.NewMessage(unit.RequestID, []byte(unit.RequestID))
	if err := q.bus.Publish(q.topic, msg); err != nil {
		q.mu.Lock()
		delete(q.units, unit.RequestID)
		q.mu.Unlock()
		return "", errors.Wrap(err, "queryqueue: publish")
	}
	return unit.RequestID, nil
}

// Cancel marks the unit with the given request id cancelled. It returns false
// when the id is unknown or the unit already finished.
func (q *Queue) Cancel(requestID string) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	unit, ok := q.units[requestID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	unit.Cancel()
	return true
}

// Len reports the number of units queued or currently processing.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units)
}

// Start launches the drain loop. It is long-lived: the loop idles on an empty
// queue and survives per-unit failures. If its own subscription breaks while
// the context is still live, the loop is resubscribed and restarted, never the
// whole process. Start a queue at most once.
func (q *Queue) Start(ctx context.Context) error {
	if q == nil {
		return errors.New("queryqueue: queue is nil")
	}
	if ctx == nil {
		return errors.New("queryqueue: Start requires non-nil ctx")
	}
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return errors.New("queryqueue: already started")
	}
	q.started = true
	q.mu.Unlock()

	ch, err := q.bus.Subscribe(ctx, q.topic)
	if err != nil {
		return errors.Wrap(err, "queryqueue: subscribe")
	}

	go q.supervise(ctx, ch)
	return nil
}

// Done is closed once the drain loop has fully stopped.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) supervise(ctx context.Context, ch <-chan *message.Message) {
	defer close(q.done)
	for {
		q.drain(ctx, ch)
		if ctx.Err() != nil {
			log.Info().Str("component", "queryqueue").Msg("drain loop stopped")
			return
		}
		log.Warn().Str("component", "queryqueue").Msg("drain loop subscription closed, restarting")
		var err error
		ch, err = q.bus.Subscribe(ctx, q.topic)
		if err != nil {
			log.Error().Err(err).Str("component", "queryqueue").Msg("resubscribe failed, drain loop terminating")
			return
		}
	}
}

func (q *Queue) drain(ctx context.Context, ch <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			q.handleMessage(ctx, msg)
			msg.Ack()
		}
	}
}

func (q *Queue) handleMessage(ctx context.Context, msg *message.Message) {
	id := string(msg.Payload)
	q.mu.Lock()
	unit, ok := q.units[id]
	q.mu.Unlock()
	if !ok {
		log.Warn().Str("component", "queryqueue").Str("request_id", id).Msg("dequeued unknown unit, dropping")
		return
	}

	res := q.runUnit(ctx, unit)

	q.mu.Lock()
	delete(q.units, id)
	q.mu.Unlock()

	q.dispatchResult(ctx, unit, res)
}

// runUnit checks the cancellation flag before starting external processing
// and again after its result is produced, so a cancelled unit's result is
// always discarded.
func (q *Queue) runUnit(ctx context.Context, unit *WorkUnit) Result {
	if unit.Cancelled() {
		return Result{Outcome: OutcomeCancelled}
	}

	reply, err := q.safeProcess(ctx, unit)

	if unit.Cancelled() {
		return Result{Outcome: OutcomeCancelled}
	}
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return Result{Outcome: OutcomeCompleted, Reply: reply}
}

func (q *Queue) safeProcess(ctx context.Context, unit *WorkUnit) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("queryqueue: processor panicked: %v", r)
		}
	}()
	return q.process(ctx, unit)
}

func (q *Queue) dispatchResult(ctx context.Context, unit *WorkUnit, res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "queryqueue").Str("request_id", unit.RequestID).
				Interface("panic", r).Msg("result handler panicked")
		}
	}()
	q.handle(ctx, unit, res)
}
