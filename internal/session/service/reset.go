package service

import (
	"context"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/audit"
)

// Reset forces a local and remote sign-out and returns the guest state. A
// failing provider sign-out is tolerated: local state is cleared regardless.
// Reset is also the recovery path out of a bootstrap that never resolved, so
// the returned state is always ready.
func (s *Service) Reset(ctx context.Context, reason models.ResetReason) (models.State, error) {
	if reason == "" {
		reason = models.ResetReasonUserReset
	}
	var (
		final    models.State
		clearErr error
	)
	err := s.do(ctx, func() {
		tctx := taskContext(ctx)
		final, clearErr = s.reset(tctx, reason, "", func(next *models.State) {
			next.Ready = true
		})
	})
	if err != nil {
		return s.state.Snapshot(), err
	}
	if clearErr != nil {
		return final, dErrors.Wrap(clearErr, dErrors.CodeInternal, "failed to clear persisted session")
	}
	return final, nil
}

// SignOut is the user "log out" action.
func (s *Service) SignOut(ctx context.Context) (models.State, error) {
	return s.Reset(ctx, models.ResetReasonUserLogout)
}

// reset runs on the worker: provider sign-out, clear persisted artifacts,
// clear session and role. The returned error is the persisted store failure,
// if any; the tuple is cleared either way. subject names the subject being
// discarded when it is not the one currently held.
func (s *Service) reset(
	ctx context.Context,
	reason models.ResetReason,
	subject domain.SubjectID,
	extra ...func(*models.State),
) (models.State, error) {
	if subject.IsNil() {
		subject = s.state.Snapshot().Subject()
	}

	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.WarnContext(ctx, "provider sign-out failed, clearing local session anyway",
			"reason", reason.String(), "error", err)
		// The provider still holds the session in memory and would refresh it
		// back into the store on its next tick.
		if forgetErr := s.provider.ForgetLocal(ctx); forgetErr != nil {
			s.logger.ErrorContext(ctx, "failed to drop provider session", "reason", reason.String(), "error", forgetErr)
		}
	}
	clearErr := s.persisted.Clear(ctx)
	if clearErr != nil {
		s.logger.ErrorContext(ctx, "failed to clear persisted session", "reason", reason.String(), "error", clearErr)
	}

	s.epoch.Add(1)
	st := s.state.Commit(func(next *models.State) {
		next.Session = nil
		next.Role = ""
		next.Err = nil
		for _, fn := range extra {
			fn(next)
		}
	})
	s.incrementReset(reason)
	s.logAudit(ctx, audit.EventSessionReset, subject, "reason", reason.String())
	return st, clearErr
}
