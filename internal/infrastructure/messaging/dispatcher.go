package messaging

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
	"github.com/featherlingo/featherlingo-api/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher registers named handlers on an event bus and wraps each of them
// with recovery, logging and retries. Events that still fail end up in a
// bounded dead-letter queue.
type Dispatcher struct {
	bus         shared.EventSubscriber
	log         *logger.Logger
	retrier     *retry.Retrier
	timeout     time.Duration
	middlewares []Middleware
	deadLetters *DeadLetterQueue
}

// DispatcherConfig contains configuration for Dispatcher.
type DispatcherConfig struct {
	Logger *logger.Logger

	// MaxAttempts bounds handler retries, 1 disables retrying.
	MaxAttempts int

	// HandlerTimeout limits a single handler call.
	HandlerTimeout time.Duration

	// DeadLetterSize is the capacity of the dead-letter queue.
	DeadLetterSize int
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxAttempts:    3,
		HandlerTimeout: 5 * time.Second,
		DeadLetterSize: 1000,
	}
}

// NewDispatcher creates a dispatcher bound to bus.
func NewDispatcher(bus shared.EventSubscriber, cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 5 * time.Second
	}
	log := cfg.Logger.WithComponent("dispatcher")

	d := &Dispatcher{
		bus:         bus,
		log:         log,
		timeout:     cfg.HandlerTimeout,
		deadLetters: NewDeadLetterQueue(cfg.DeadLetterSize),
		retrier: retry.New(
			retry.WithMaxAttempts(cfg.MaxAttempts),
			retry.WithInitialDelay(50*time.Millisecond),
			retry.WithMaxDelay(time.Second),
		),
	}
	d.middlewares = []Middleware{RecoveryMiddleware(log), LoggingMiddleware(log)}
	return d
}

// ContextHandler handles an event with a deadline-bound context.
type ContextHandler func(ctx context.Context, event shared.Event) error

// Register subscribes handler under name for eventTypes.
func (d *Dispatcher) Register(name string, handler ContextHandler, eventTypes ...shared.EventType) error {
	wrapped := d.wrap(name, handler)
	for _, t := range eventTypes {
		if err := d.bus.Subscribe(t, wrapped); err != nil {
			return fmt.Errorf("dispatcher: register %s for %s: %w", name, t, err)
		}
	}
	return nil
}

func (d *Dispatcher) wrap(name string, handler ContextHandler) shared.EventHandler {
	var h shared.EventHandler = func(event shared.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		return handler(ctx, event)
	}
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		h = d.middlewares[i](h)
	}

	return func(event shared.Event) error {
		err := d.retrier.Do(context.Background(), func(context.Context) error {
			return retry.Retryable(h(event))
		})
		if err != nil {
			d.deadLetters.Add(DeadLetterEntry{
				Handler:  name,
				Event:    event,
				Error:    err.Error(),
				FailedAt: time.Now().UTC(),
			})
		}
		return err
	}
}

// DeadLetters returns the dead-letter queue.
func (d *Dispatcher) DeadLetters() *DeadLetterQueue {
	return d.deadLetters
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// Middleware wraps an event handler.
type Middleware func(shared.EventHandler) shared.EventHandler

// RecoveryMiddleware turns handler panics into errors.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic recovered",
						logger.String("event_type", string(event.EventType())),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)

			fields := []logger.Field{
				logger.String("event_type", string(event.EventType())),
				logger.String("aggregate_id", event.AggregateID()),
				logger.Latency(time.Since(start)),
			}
			if err != nil {
				log.Warn("handler attempt failed", append(fields, logger.Err(err))...)
			} else {
				log.Debug("handler completed", fields...)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is an event a handler gave up on.
type DeadLetterEntry struct {
	Handler  string       `json:"handler"`
	Event    shared.Event `json:"-"`
	Error    string       `json:"error"`
	FailedAt time.Time    `json:"failed_at"`
}

// DeadLetterQueue keeps the most recent failed deliveries, dropping the oldest.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a queue holding at most maxSize entries.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add appends an entry.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the queue.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the number of entries.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
