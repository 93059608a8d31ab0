package service

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"propmaster/internal/session/models"
	"propmaster/internal/session/ports"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/audit"
)

// Subscription is the controller's registration on the provider event
// stream. Unsubscribe releases it; calling it again is a no-op.
type Subscription struct {
	once     sync.Once
	provider ports.Subscription
	stop     func() bool
	owner    *Service
}

func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		if sub.stop != nil {
			sub.stop()
		}
		sub.provider.Unsubscribe()
		sub.owner.forget(sub)
	})
}

// Subscribe registers the controller on the provider's session events. Events
// are queued in arrival order and processed one at a time for the rest of
// the subscription. The subscription is released when ctx ends, on
// Unsubscribe, or on Close, whichever comes first.
func (s *Service) Subscribe(ctx context.Context) (*Subscription, error) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	s.queue.start()
	sub := &Subscription{owner: s}
	sub.provider = s.provider.OnSessionEvent(s.enqueueEvent)
	sub.stop = context.AfterFunc(ctx, sub.Unsubscribe)
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *Service) forget(sub *Subscription) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, cur := range s.subs {
		if cur == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// enqueueEvent is the provider callback. It never blocks the provider.
func (s *Service) enqueueEvent(ev models.Event) {
	if !s.queue.push(func() { s.handleEvent(context.Background(), ev) }) {
		s.logger.Warn("session event dropped after close", "kind", ev.Kind.String())
	}
}

func (s *Service) handleEvent(ctx context.Context, ev models.Event) {
	ctx, span := s.tracer.Start(ctx, "session.event")
	defer span.End()
	span.SetAttributes(attribute.String("kind", ev.Kind.String()))
	s.incrementEvent(ev.Kind)

	switch ev.Kind {
	case models.EventSignedOut:
		subject := s.state.Snapshot().Subject()
		s.epoch.Add(1)
		s.state.Commit(func(next *models.State) {
			next.Session = nil
			next.Role = ""
			next.Err = nil
		})
		s.logAudit(ctx, audit.EventSessionSignedOut, subject, "origin", ev.Origin)

	case models.EventSignedIn, models.EventTokenRefreshed:
		if ev.Session == nil {
			s.logger.WarnContext(ctx, "session event without session ignored", "kind", ev.Kind.String())
			return
		}
		subject := ev.Session.Subject()
		prev := s.state.Snapshot()
		keepRole := ev.Kind == models.EventTokenRefreshed && prev.Subject() == subject

		epoch := s.epoch.Add(1)
		s.state.Commit(func(next *models.State) {
			next.Session = ev.Session
			next.Err = nil
			if !keepRole {
				next.Role = ""
			}
		})
		action := audit.EventSessionSignedIn
		if ev.Kind == models.EventTokenRefreshed {
			action = audit.EventSessionRefreshed
		}
		s.logAudit(ctx, action, subject, "origin", ev.Origin)

		s.applyRole(ctx, epoch, s.resolveRole(ctx, subject))

	default:
		s.logger.WarnContext(ctx, "unknown session event ignored", "kind", ev.Kind.String())
	}
}

// applyRole runs on the worker. The result is applied only when no session
// change happened since epoch and the held subject is the one looked up.
func (s *Service) applyRole(ctx context.Context, epoch uint64, res roleResolution) models.State {
	cur := s.state.Snapshot()
	if s.epoch.Load() != epoch || cur.Subject() != res.subject {
		s.incrementStaleRoleDiscarded()
		s.logAudit(ctx, audit.EventRoleDiscarded, res.subject, "reason", "superseded")
		return cur
	}

	switch res.verdict {
	case verdictFound:
		st := s.state.Commit(func(next *models.State) {
			next.Role = res.role
		})
		s.logAudit(ctx, audit.EventRoleResolved, res.subject, "role", res.role.String())
		return st
	case verdictInconsistent:
		s.logger.WarnContext(ctx, "session has no usable profile, resetting",
			"subject_id", res.subject.String(), "reason", res.reason.String(), "error", res.err)
		st, _ := s.reset(ctx, res.reason, res.subject)
		return st
	default:
		s.logger.WarnContext(ctx, "role lookup failed, role pending",
			"subject_id", res.subject.String(), "error", res.err)
		return cur
	}
}

// RefreshRole repeats the role lookup for the held session. It is how a
// role-pending controller reaches a settled role without a new provider
// event. A transient failure leaves the state unchanged and is returned.
func (s *Service) RefreshRole(ctx context.Context) (models.State, error) {
	var (
		final models.State
		opErr error
	)
	err := s.do(ctx, func() {
		tctx := taskContext(ctx)
		cur := s.state.Snapshot()
		if cur.Session == nil {
			final = cur
			opErr = dErrors.New(dErrors.CodeBadRequest, "no active session")
			return
		}
		epoch := s.epoch.Load()
		res := s.resolveRole(tctx, cur.Subject())
		final = s.applyRole(tctx, epoch, res)
		if res.verdict == verdictTransient {
			opErr = dErrors.Wrap(res.err, dErrors.CodeProviderUnavailable, "role lookup unavailable")
		}
	})
	if err != nil {
		return s.state.Snapshot(), err
	}
	return final, opErr
}
