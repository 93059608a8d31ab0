package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"propmaster/internal/platform/middleware"
	"propmaster/internal/session/models"
	"propmaster/pkg/platform/httputil"
	"propmaster/pkg/platform/middleware/metadata"
	"propmaster/pkg/platform/middleware/requesttime"
	"propmaster/pkg/requestcontext"
)

// Controller is the session controller as seen by the HTTP surface.
type Controller interface {
	State() models.State
	Initialize(ctx context.Context) (models.State, error)
	Settle(ctx context.Context) (models.State, error)
	Reset(ctx context.Context, reason models.ResetReason) (models.State, error)
	SignOut(ctx context.Context) (models.State, error)
	RefreshRole(ctx context.Context) (models.State, error)
}

// Authenticator performs the credential flows of the identity provider.
type Authenticator interface {
	SignInWithCredentials(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string, meta models.Metadata) (*models.Session, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	controller Controller
	auth       Authenticator
	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	checks     map[string]HealthCheck
}

type Option func(*Handler)

func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

func New(controller Controller, auth Authenticator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		controller: controller,
		auth:       auth,
		logger:     logger,
		gatherer:   prometheus.DefaultGatherer,
		checks:     make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the full route tree with its middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(h.logger))
	r.Use(chimw.Timeout(30 * time.Second))
	h.Register(r)
	return r
}

// Register mounts the session endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Get("/session", h.HandleGetSession)
	r.Post("/session/bootstrap", h.HandleBootstrap)
	r.Post("/session/reset", h.HandleReset)
	r.Post("/session/role/refresh", h.HandleRefreshRole)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/signup", h.HandleSignUp)
	r.Post("/auth/logout", h.HandleLogout)
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromState(h.controller.State()))
}

// HandleBootstrap retries a bootstrap that failed on a provider outage. It
// keeps the persisted session, unlike reset, and is a no-op once ready.
func (h *Handler) HandleBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := requestcontext.WithAction(r.Context(), "bootstrap")
	st, err := h.controller.Initialize(ctx)
	h.writeState(ctx, w, http.StatusOK, st, err, "session bootstrap failed")
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := requestcontext.WithAction(r.Context(), "reset")
	st, err := h.controller.Reset(ctx, models.ResetReasonUserReset)
	h.writeState(ctx, w, http.StatusOK, st, err, "session reset failed")
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := requestcontext.WithAction(r.Context(), "logout")
	st, err := h.controller.SignOut(ctx)
	h.writeState(ctx, w, http.StatusOK, st, err, "sign-out failed")
}

func (h *Handler) HandleRefreshRole(w http.ResponseWriter, r *http.Request) {
	ctx := requestcontext.WithAction(r.Context(), "refresh_role")
	st, err := h.controller.RefreshRole(ctx)
	h.writeState(ctx, w, http.StatusOK, st, err, "role refresh failed")
}

// HandleLogin signs in with email and password and answers with the state
// the resulting sign-in event produced.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := requestcontext.WithAction(r.Context(), "login")
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if _, err := h.auth.SignInWithCredentials(ctx, req.Email, req.Password); err != nil {
		h.logger.WarnContext(ctx, "sign-in failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	st, err := h.controller.Settle(ctx)
	h.writeState(ctx, w, http.StatusOK, st, err, "sign-in settle failed")
}

func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := requestcontext.WithAction(r.Context(), "signup")
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignUpRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sess, err := h.auth.SignUp(ctx, req.Email, req.Password, req.Metadata())
	if err != nil {
		h.logger.WarnContext(ctx, "sign-up failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if sess == nil {
		httputil.WriteJSON(w, http.StatusAccepted, SignUpPendingResponse{Status: "confirmation_pending", Email: req.Email})
		return
	}
	st, err := h.controller.Settle(ctx)
	h.writeState(ctx, w, http.StatusCreated, st, err, "sign-up settle failed")
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Ready: h.controller.State().Ready}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			if resp.Failing == nil {
				resp.Failing = make(map[string]string)
			}
			resp.Failing[name] = err.Error()
			resp.Status = "degraded"
		}
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) writeState(ctx context.Context, w http.ResponseWriter, status int, st models.State, err error, msg string) {
	if err != nil {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"phase", string(st.Phase()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, FromState(st))
}
