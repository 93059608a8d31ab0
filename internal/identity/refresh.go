package identity

import (
	"context"

	"propmaster/internal/session/models"
	dErrors "propmaster/pkg/domain-errors"
)

// RunAutoRefresh refreshes the held session ahead of expiry until ctx ends.
// A successful refresh emits TokenRefreshed. A rejected refresh token clears
// the persisted session and emits SignedOut, unless another instance already
// rotated it, in which case the rotated session is adopted. Other failures
// are retried on the next tick.
func (c *Client) RunAutoRefresh(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			c.refreshIfDue(ctx)
		}
	}
}

func (c *Client) refreshIfDue(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	sess := c.current
	if sess == nil {
		return
	}
	if newer := c.newerPersistedLocked(ctx, sess); newer != nil {
		c.current = newer
		c.events.emit(models.Event{Kind: models.EventTokenRefreshed, Session: newer, OccurredAt: c.clock.Now()})
		sess = newer
	}
	if !sess.ExpiresWithin(c.clock.Now(), c.refreshMargin) {
		return
	}

	refreshed, err := c.refreshLocked(ctx, sess)
	switch {
	case err == nil:
		c.events.emit(models.Event{Kind: models.EventTokenRefreshed, Session: refreshed, OccurredAt: c.clock.Now()})
	case dErrors.HasCode(err, dErrors.CodeStaleToken):
		c.logger.WarnContext(ctx, "refresh token rejected, signing out", "subject_id", sess.Subject().String())
		c.events.emit(models.Event{Kind: models.EventSignedOut, OccurredAt: c.clock.Now()})
	default:
		c.logger.WarnContext(ctx, "token refresh failed, retrying next tick",
			"subject_id", sess.Subject().String(), "error", err)
	}
}
