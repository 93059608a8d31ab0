package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"propmaster/internal/platform/metrics"
	"propmaster/internal/session/models"
	"propmaster/internal/session/ports"
	"propmaster/internal/session/state"
	"propmaster/pkg/domain"
	"propmaster/pkg/platform/audit"
	"propmaster/pkg/platform/sentinel"
	"propmaster/pkg/requestcontext"
)

// ErrClosed is returned by operations submitted after Close.
var ErrClosed = fmt.Errorf("session controller closed: %w", sentinel.ErrInvalidState)

// Service owns the controller state tuple. It bootstraps the tuple once and
// keeps it aligned with identity provider events for the process lifetime.
//
// All writes to the tuple happen on one worker goroutine fed by a FIFO task
// queue. Bootstrap I/O runs on the caller's goroutine and hands its result to
// the queue, where it is discarded if a provider event or reset landed first.
type Service struct {
	provider  ports.IdentityProvider
	roles     ports.RoleStore
	persisted ports.PersistedSessionStore
	state     *state.Container

	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	policy         models.ProfileMissingPolicy

	queue *taskQueue
	// epoch increases on every adopted session, sign-out and reset. Written
	// only by the worker.
	epoch atomic.Uint64

	initMu sync.Mutex

	subsMu sync.Mutex
	subs   []*Subscription
	closed bool
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithProfileMissingPolicy selects how a subject without a role record is
// handled. Invalid values are ignored.
func WithProfileMissingPolicy(p models.ProfileMissingPolicy) Option {
	return func(s *Service) {
		if p.IsValid() {
			s.policy = p
		}
	}
}

// New constructs a Service. container may be shared with readers; pass nil to
// have the service allocate its own.
func New(
	provider ports.IdentityProvider,
	roles ports.RoleStore,
	persisted ports.PersistedSessionStore,
	container *state.Container,
	opts ...Option,
) *Service {
	if container == nil {
		container = state.New()
	}
	s := &Service{
		provider:  provider,
		roles:     roles,
		persisted: persisted,
		state:     container,
		logger:    slog.Default(),
		tracer:    otel.Tracer("propmaster/session"),
		policy:    models.ProfileMissingReset,
		queue:     newTaskQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the controller tuple.
func (s *Service) State() models.State {
	return s.state.Snapshot()
}

// Watch notifies fn of every committed state change. fn runs on the worker
// goroutine; it must not block and must not call controller operations.
func (s *Service) Watch(fn func(models.State)) (unsubscribe func()) {
	return s.state.Watch(fn)
}

// Settle waits until every event queued before the call has been applied and
// returns the resulting state. User actions that raise provider events use it
// to answer with the state those events produced.
func (s *Service) Settle(ctx context.Context) (models.State, error) {
	if err := s.do(ctx, func() {}); err != nil {
		return s.state.Snapshot(), err
	}
	return s.state.Snapshot(), nil
}

// Close releases provider subscriptions and stops the worker once queued
// tasks have drained.
func (s *Service) Close() error {
	s.subsMu.Lock()
	if s.closed {
		s.subsMu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.queue.close()
	return nil
}

func (s *Service) isClosed() bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return s.closed
}

// do runs fn on the worker and waits for it. If ctx ends first the task still
// runs; only the wait is abandoned.
func (s *Service) do(ctx context.Context, fn func()) error {
	s.queue.start()
	done := make(chan struct{})
	if !s.queue.push(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// taskContext detaches a task from its submitter's cancellation. Tasks always
// run to completion once queued.
func taskContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, subject domain.SubjectID, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if action := requestcontext.Action(ctx); action != "" {
		attributes = append(attributes, "action", action)
	}
	args := append(attributes, "subject_id", subject.String(), "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	ev := audit.Event{
		SubjectID: subject,
		Action:    string(event),
	}
	for i := 0; i+1 < len(attributes); i += 2 {
		key, _ := attributes[i].(string)
		val := fmt.Sprint(attributes[i+1])
		switch key {
		case "role":
			ev.Role = domain.Role(val)
		case "reason":
			ev.Reason = val
		case "origin":
			ev.Origin = val
		}
	}
	if err := s.auditPublisher.Emit(ctx, ev); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func (s *Service) incrementBootstrap(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementBootstrap(outcome)
	}
}

func (s *Service) incrementEvent(kind models.EventKind) {
	if s.metrics != nil {
		s.metrics.IncrementEvent(kind.String())
	}
}

func (s *Service) incrementReset(reason models.ResetReason) {
	if s.metrics != nil {
		s.metrics.IncrementReset(reason.String())
	}
}

func (s *Service) incrementStaleRoleDiscarded() {
	if s.metrics != nil {
		s.metrics.IncrementStaleRoleDiscarded()
	}
}
