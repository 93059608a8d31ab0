package publisher

import (
	"context"
	"log/slog"
	"sync"

	"propmaster/pkg/domain"
	audit "propmaster/pkg/platform/audit"
	"propmaster/pkg/platform/audit/worker"
	"propmaster/pkg/requestcontext"
)

// Publisher records audit events in a Store and forwards copies to optional
// sinks. In async mode events are queued and persisted by a worker; Close
// drains the queue.
type Publisher struct {
	store   *fanoutStore
	logger  *slog.Logger
	buffer  int
	inbox   chan audit.Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	closeMu sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

// WithSink forwards every persisted event to sink (e.g. Kafka).
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.store.sinks = append(p.store.sinks, sink)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: &fanoutStore{
			primary: store,
			breaker: NewCircuitBreaker(5, 0),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.store.logger = p.logger

	if p.buffer > 0 {
		p.inbox = make(chan audit.Event, p.buffer)
		p.done = make(chan struct{})
		w := worker.NewWorker(p.store, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records event. Timestamp, category and request id are filled in when
// missing. A full async queue falls back to a synchronous append.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.inbox != nil && !p.closed {
		select {
		case p.inbox <- event:
			return nil
		default:
		}
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, subject domain.SubjectID) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close stops accepting queued events and waits for the worker to drain.
func (p *Publisher) Close() {
	p.closeMu.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.inbox != nil {
			close(p.inbox)
		}
		p.mu.Unlock()
		if p.done != nil {
			<-p.done
		}
	})
}

// fanoutStore appends to the primary store, then copies to sinks while the
// breaker allows it.
type fanoutStore struct {
	primary audit.Store
	sinks   []audit.Sink
	breaker *CircuitBreaker
	logger  *slog.Logger
}

func (f *fanoutStore) Append(ctx context.Context, event audit.Event) error {
	if err := f.primary.Append(ctx, event); err != nil {
		return err
	}
	if len(f.sinks) == 0 || !f.breaker.Allow() {
		return nil
	}
	for _, sink := range f.sinks {
		if err := sink.Append(ctx, event); err != nil {
			f.breaker.RecordFailure()
			f.logger.WarnContext(ctx, "audit sink append failed",
				"error", err,
				"action", event.Action,
			)
			continue
		}
		f.breaker.RecordSuccess()
	}
	return nil
}

func (f *fanoutStore) ListBySubject(ctx context.Context, subject domain.SubjectID) ([]audit.Event, error) {
	return f.primary.ListBySubject(ctx, subject)
}
