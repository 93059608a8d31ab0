package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"propmaster/internal/session/models"
	"propmaster/pkg/platform/audit"
	dErrors "propmaster/pkg/domain-errors"
)

// Initialize resolves the controller to a ready state from the persisted
// session. It is never retried automatically. If the provider is unreachable
// the state stays not ready, State.Err carries the failure and the error is
// returned; the caller may invoke Initialize again. Once ready, further calls
// return the current state.
func (s *Service) Initialize(ctx context.Context) (models.State, error) {
	if cur := s.state.Snapshot(); cur.Ready {
		return cur, nil
	}
	if s.isClosed() {
		return s.state.Snapshot(), ErrClosed
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if cur := s.state.Snapshot(); cur.Ready {
		return cur, nil
	}

	ctx, span := s.tracer.Start(ctx, "session.bootstrap")
	defer span.End()

	s.queue.start()
	startEpoch := s.epoch.Load()

	sess, err := s.provider.GetPersistedSession(ctx)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeStaleToken) {
		if !dErrors.HasCode(err, dErrors.CodeProviderUnavailable) {
			err = dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to load persisted session")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider unavailable")
		return s.applyBootstrapFailure(ctx, startEpoch, err)
	}

	var res roleResolution
	if err == nil && sess != nil && s.epoch.Load() == startEpoch {
		res = s.resolveRole(ctx, sess.Subject())
	}

	var final models.State
	if doErr := s.do(ctx, func() {
		final = s.applyBootstrap(taskContext(ctx), startEpoch, sess, err, res)
	}); doErr != nil {
		return s.state.Snapshot(), doErr
	}
	span.SetAttributes(attribute.String("phase", string(final.Phase())))
	return final, nil
}

// applyBootstrap runs on the worker. staleErr is non-nil when the persisted
// refresh token was rejected.
func (s *Service) applyBootstrap(
	ctx context.Context,
	startEpoch uint64,
	sess *models.Session,
	staleErr error,
	res roleResolution,
) models.State {
	if s.epoch.Load() != startEpoch {
		// A provider event or reset already wrote a newer tuple.
		if sess != nil && staleErr == nil {
			s.incrementStaleRoleDiscarded()
			s.logAudit(ctx, audit.EventRoleDiscarded, sess.Subject(), "reason", "superseded_bootstrap")
		}
		s.incrementBootstrap("superseded")
		return s.state.Commit(func(next *models.State) {
			next.Ready = true
			next.Err = nil
		})
	}

	var st models.State
	ready := func(next *models.State) {
		next.Ready = true
		next.Err = nil
	}
	switch {
	case staleErr != nil:
		s.logger.InfoContext(ctx, "persisted refresh token rejected, resetting", "error", staleErr)
		st, _ = s.reset(ctx, models.ResetReasonStaleToken, "", ready)
	case sess == nil:
		st = s.state.Commit(ready)
	case res.verdict == verdictFound:
		s.epoch.Add(1)
		st = s.state.Commit(func(next *models.State) {
			next.Session = sess
			next.Role = res.role
			ready(next)
		})
		s.logAudit(ctx, audit.EventRoleResolved, sess.Subject(), "role", res.role.String())
	case res.verdict == verdictInconsistent:
		s.logger.WarnContext(ctx, "persisted session has no usable profile, resetting",
			"subject_id", sess.Subject().String(), "reason", res.reason.String(), "error", res.err)
		st, _ = s.reset(ctx, res.reason, sess.Subject(), ready)
	default:
		s.logger.WarnContext(ctx, "role lookup failed, role pending",
			"subject_id", sess.Subject().String(), "error", res.err)
		s.epoch.Add(1)
		st = s.state.Commit(func(next *models.State) {
			next.Session = sess
			next.Role = ""
			ready(next)
		})
	}

	s.incrementBootstrap(string(st.Phase()))
	s.logAudit(ctx, audit.EventSessionBootstrapped, st.Subject(), "phase", string(st.Phase()))
	return st
}

// applyBootstrapFailure records a provider outage. If an event already
// settled the tuple in the meantime the outage no longer matters and the
// controller becomes ready with the event's state.
func (s *Service) applyBootstrapFailure(ctx context.Context, startEpoch uint64, cause error) (models.State, error) {
	var (
		final      models.State
		superseded bool
	)
	if doErr := s.do(ctx, func() {
		if s.epoch.Load() != startEpoch {
			superseded = true
			final = s.state.Commit(func(st *models.State) {
				st.Ready = true
				st.Err = nil
			})
			return
		}
		final = s.state.Commit(func(st *models.State) {
			st.Err = cause
		})
	}); doErr != nil {
		return s.state.Snapshot(), doErr
	}

	if superseded {
		s.incrementBootstrap("superseded")
		return final, nil
	}
	s.incrementBootstrap("provider_unavailable")
	s.logger.ErrorContext(ctx, "bootstrap failed: identity provider unavailable", "error", cause)
	return final, cause
}
