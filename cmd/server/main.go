package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"propmaster/internal/identity"
	"propmaster/internal/identity/broadcast"
	"propmaster/internal/identity/fake"
	"propmaster/internal/identity/gotrue"
	"propmaster/internal/identity/store/persisted"
	"propmaster/internal/platform/config"
	"propmaster/internal/platform/httpserver"
	"propmaster/internal/platform/logger"
	"propmaster/internal/platform/metrics"
	"propmaster/internal/platform/postgres"
	platformredis "propmaster/internal/platform/redis"
	rolestore "propmaster/internal/role/store"
	"propmaster/internal/session/handler"
	"propmaster/internal/session/models"
	"propmaster/internal/session/ports"
	"propmaster/internal/session/service"
	"propmaster/internal/session/state"
	"propmaster/pkg/platform/audit/publisher"
	"propmaster/pkg/platform/audit/publishers/kafka"
	auditmemory "propmaster/pkg/platform/audit/store/memory"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "propmaster: %v\n", err)
		os.Exit(1)
	}
}

// run wires the dependencies and blocks until a signal arrives or a
// long-running component fails.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gatherer := prometheus.Gatherers{prometheus.DefaultGatherer, reg}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	auditPublisher, closeAudit := buildAudit(ctx, cfg.Audit, log)
	defer closeAudit()

	roles, createProfile, err := buildRoleStore(ctx, db, cfg.Auth.URL == "")
	if err != nil {
		return err
	}

	var transport identity.Transport
	if cfg.Auth.URL != "" {
		transport = gotrue.New(cfg.Auth.URL, cfg.Auth.APIKey)
	} else {
		log.Warn("AUTH_URL not set, using the in-process development provider")
		transport = fake.New(cfg.Auth.DevSigningKey, fake.WithSignUpHook(createProfile))
	}

	var sessions ports.PersistedSessionStore = persisted.NewInMemoryStore()
	if rdb != nil {
		sessions = persisted.NewRedisStore(rdb.Client)
	}

	client := identity.New(transport, sessions,
		identity.WithLogger(log),
		identity.WithMetrics(m),
		identity.WithRefreshMargin(cfg.Session.RefreshMargin),
		identity.WithRefreshInterval(cfg.Session.RefreshInterval),
	)

	svc := service.New(client, roles, sessions, state.New(),
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(m),
		service.WithProfileMissingPolicy(models.ProfileMissingPolicy(cfg.Session.ProfileMissingPolicy)),
	)
	defer svc.Close()

	sub, err := svc.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}
	defer sub.Unsubscribe()

	st, err := svc.Initialize(ctx)
	if err != nil {
		// Not fatal: the outage is in the state and the user can retry.
		log.WarnContext(ctx, "session bootstrap failed", "error", err)
	}
	log.InfoContext(ctx, "session bootstrapped", "phase", string(st.Phase()))

	opts := []handler.Option{handler.WithGatherer(gatherer)}
	if rdb != nil {
		opts = append(opts, handler.WithHealthCheck("redis", rdb.Health))
	}
	if db != nil {
		opts = append(opts, handler.WithHealthCheck("postgres", db.PingContext))
	}
	h := handler.New(svc, client, log, opts...)
	srv := httpserver.New(cfg.Addr, h.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting propmaster", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv, shutdownGrace)
	})
	g.Go(func() error {
		return client.RunAutoRefresh(gctx)
	})
	if rdb != nil {
		relay := broadcast.NewRelay(rdb.Client, client, broadcast.WithLogger(log))
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	err = g.Wait()
	log.Info("propmaster stopped")
	return err
}

func buildAudit(ctx context.Context, cfg config.AuditConfig, log *slog.Logger) (*publisher.Publisher, func()) {
	opts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(256),
	}
	var sink *kafka.Sink
	if len(cfg.Brokers) > 0 {
		s, err := kafka.NewSink(cfg.Brokers, cfg.Topic)
		if err != nil {
			log.Warn("kafka audit sink disabled", "error", err)
		} else {
			if err := s.EnsureTopic(ctx, 1, 1); err != nil {
				log.Warn("failed to ensure audit topic", "topic", cfg.Topic, "error", err)
			}
			sink = s
			opts = append(opts, publisher.WithSink(s))
		}
	}
	pub := publisher.NewPublisher(auditmemory.NewInMemoryStore(), opts...)
	return pub, func() {
		pub.Close()
		if sink != nil {
			sink.Close()
		}
	}
}

// buildRoleStore picks Postgres when a database is configured. The schema is
// only created when the development provider owns sign-up.
func buildRoleStore(ctx context.Context, db *sql.DB, ownsSchema bool) (ports.RoleStore, fake.SignUpHook, error) {
	if db == nil {
		mem := rolestore.NewInMemoryStore()
		return mem, mem.CreateProfile, nil
	}
	pg := rolestore.NewPostgresStore(db)
	if ownsSchema {
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
	}
	return pg, pg.CreateProfile, nil
}
