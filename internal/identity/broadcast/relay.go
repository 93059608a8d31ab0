// Package broadcast relays session events between instances that share one
// persisted session store, so every instance's controller sees sign-ins and
// sign-outs performed elsewhere.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"propmaster/internal/session/models"
	"propmaster/internal/session/ports"
)

// DefaultChannel is the Redis pub/sub channel carrying session events.
const DefaultChannel = "propmaster:session-events"

// Source is the local identity client.
type Source interface {
	OnSessionEvent(fn func(models.Event)) ports.Subscription
	ApplyRemote(ev models.Event)
}

type Relay struct {
	rdb        *redis.Client
	source     Source
	channel    string
	instanceID string
	logger     *slog.Logger
}

type Option func(*Relay)

func WithChannel(channel string) Option {
	return func(r *Relay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithInstanceID(id string) Option {
	return func(r *Relay) {
		if id != "" {
			r.instanceID = id
		}
	}
}

func NewRelay(rdb *redis.Client, source Source, opts ...Option) *Relay {
	r := &Relay{
		rdb:        rdb,
		source:     source,
		channel:    DefaultChannel,
		instanceID: uuid.NewString(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) InstanceID() string {
	return r.instanceID
}

// Run subscribes to the channel, publishes local events and applies remote
// ones until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	local := r.source.OnSessionEvent(func(ev models.Event) {
		r.publish(ctx, ev)
	})
	defer local.Unsubscribe()

	r.logger.InfoContext(ctx, "session relay started", "channel", r.channel, "instance_id", r.instanceID)
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(ctx, []byte(msg.Payload))
		}
	}
}

// publish forwards locally raised events. Events that carry an origin came
// from another instance and are not sent back.
func (r *Relay) publish(ctx context.Context, ev models.Event) {
	if ev.Origin != "" {
		return
	}
	ev.Origin = r.instanceID
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to marshal session event", "error", err)
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.WarnContext(ctx, "failed to publish session event", "kind", ev.Kind.String(), "error", err)
	}
}

func (r *Relay) handle(ctx context.Context, payload []byte) {
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.logger.WarnContext(ctx, "failed to unmarshal session event", "error", err)
		return
	}
	if ev.Origin == "" || ev.Origin == r.instanceID || !ev.Kind.IsValid() {
		return
	}
	r.source.ApplyRemote(ev)
}
