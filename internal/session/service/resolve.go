package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

type verdict int

const (
	// verdictFound: the role row exists and holds a known role.
	verdictFound verdict = iota
	// verdictInconsistent: authenticated subject without a usable role record.
	verdictInconsistent
	// verdictTransient: the lookup could not be completed; role stays pending.
	verdictTransient
)

type roleResolution struct {
	subject domain.SubjectID
	role    domain.Role
	verdict verdict
	reason  models.ResetReason
	err     error
}

// resolveRole looks up the subject's role and classifies the outcome. Under
// ProfileMissingRetryOnce a missing row is queried a second time before it
// counts as inconsistent.
func (s *Service) resolveRole(ctx context.Context, subject domain.SubjectID) roleResolution {
	ctx, span := s.tracer.Start(ctx, "session.role_lookup")
	defer span.End()
	span.SetAttributes(attribute.String("subject_id", subject.String()))

	res := s.lookupOnce(ctx, subject)
	if res.verdict == verdictInconsistent && res.reason == models.ResetReasonProfileMissing &&
		s.policy == models.ProfileMissingRetryOnce {
		s.logger.InfoContext(ctx, "profile missing, retrying lookup once", "subject_id", subject.String())
		res = s.lookupOnce(ctx, subject)
	}

	switch res.verdict {
	case verdictFound:
		span.SetAttributes(attribute.String("role", res.role.String()))
	case verdictInconsistent:
		span.SetAttributes(attribute.String("reset_reason", res.reason.String()))
		span.SetStatus(codes.Error, res.err.Error())
	case verdictTransient:
		span.RecordError(res.err)
		span.SetStatus(codes.Error, "transient role lookup failure")
	}
	return res
}

func (s *Service) lookupOnce(ctx context.Context, subject domain.SubjectID) roleResolution {
	start := time.Now()
	role, err := s.roles.GetRoleForSubject(ctx, subject)
	if s.metrics != nil {
		s.metrics.ObserveRoleLookup(start)
	}

	res := roleResolution{subject: subject}
	switch {
	case err == nil && role.IsValid():
		res.role = role
		res.verdict = verdictFound
	case err == nil:
		res.verdict = verdictInconsistent
		res.reason = models.ResetReasonProfileLookup
		res.err = dErrors.New(dErrors.CodeProfileLookup, "profile holds unknown role "+role.String())
	case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeProfileMissing):
		res.verdict = verdictInconsistent
		res.reason = models.ResetReasonProfileMissing
		res.err = dErrors.Wrap(err, dErrors.CodeProfileMissing, "no profile for subject")
	case dErrors.HasCode(err, dErrors.CodeProfileLookup):
		res.verdict = verdictInconsistent
		res.reason = models.ResetReasonProfileLookup
		res.err = err
	default:
		res.verdict = verdictTransient
		res.err = err
	}
	return res
}
