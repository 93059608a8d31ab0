package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

var roleQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "propmaster_role_store_query_duration_seconds",
	Help:    "Duration of profile role queries against Postgres",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
})

// PostgresStore reads roles from the profiles table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the profiles table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure profiles schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRoleForSubject(ctx context.Context, subject domain.SubjectID) (domain.Role, error) {
	start := time.Now()
	defer func() {
		roleQueryDuration.Observe(time.Since(start).Seconds())
	}()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM profiles WHERE id = $1`, subject.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("profile %s: %w", subject, sentinel.ErrNotFound)
		}
		return "", classify(err)
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeProfileLookup, "profile holds an unknown role")
	}
	return role, nil
}

// CreateProfile inserts the profile row for a new user. It matches the
// sign-up hook of the development provider.
func (s *PostgresStore) CreateProfile(ctx context.Context, user models.User, meta models.Metadata) error {
	if !meta.Role.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "sign-up role is required")
	}
	query := `
		INSERT INTO profiles (id, full_name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role
	`
	if _, err := s.db.ExecContext(ctx, query, user.ID.String(), meta.DisplayName, meta.Role.String()); err != nil {
		return fmt.Errorf("create profile: %w", classify(err))
	}
	return nil
}

// classify separates lookup-layer faults (schema, bad data) from
// connectivity problems worth retrying.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return fmt.Errorf("query profile: %w: %w", sentinel.ErrUnavailable, err)
		default:
			return dErrors.Wrap(err, dErrors.CodeProfileLookup, "query profile")
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("query profile: %w: %w", sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("query profile: %w", err)
}
