// Package httpapi is the HTTP layer. Handlers stay thin: they decode,
// resolve the caller's coverage filter, call a service and encode.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"casedesk.io/internal/audit"
	"casedesk.io/internal/cases"
	"casedesk.io/internal/coverage"
	"casedesk.io/internal/customers"
	"casedesk.io/internal/identity"
	"casedesk.io/internal/obs"
	"casedesk.io/internal/sla"
)

// ReadyProbe checks readiness, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

const (
	defaultRateBurst     = 100
	defaultRatePerSecond = 50
)

// Config wires the API's collaborators.
type Config struct {
	ReadyProbe ReadyProbe
	Version    string

	// RateBurst and RatePerSecond bound each client IP's request rate.
	// Zero values fall back to the defaults above.
	RateBurst     int
	RatePerSecond int

	Identity  *identity.Service
	Resolver  *coverage.Resolver
	Cases     *cases.Service
	Customers *customers.Service
	SLA       *sla.Service
	Audit     *audit.Recorder

	// DevActor, when non-nil, is used for requests without credentials.
	// It carries no user id, resolves to unrestricted coverage and holds
	// admin rights. Never enable outside local development.
	DevActor *identity.Actor
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	handler    http.Handler
	readyProbe ReadyProbe
	version    string

	identity  *identity.Service
	resolver  *coverage.Resolver
	cases     *cases.Service
	customers *customers.Service
	sla       *sla.Service
	audit     *audit.Recorder
	devActor  *identity.Actor
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
		identity:   cfg.Identity,
		resolver:   cfg.Resolver,
		cases:      cfg.Cases,
		customers:  cfg.Customers,
		sla:        cfg.SLA,
		audit:      cfg.Audit,
		devActor:   cfg.DevActor,
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// token issuance is the only unauthenticated API route
	a.mux.HandleFunc("/api/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/api/customers", a.protected(a.handleCustomers))
	a.mux.HandleFunc("/api/cases", a.protected(a.handleCases))
	a.mux.HandleFunc("/api/cases/", a.protected(a.handleCaseScoped))
	a.mux.HandleFunc("/api/caserelationships", a.protected(a.handleRelationships))
	a.mux.HandleFunc("/api/caserelationships/", a.protected(a.handleRelationshipScoped))
	a.mux.HandleFunc("/api/audits", a.protected(a.handleAudits))
	a.mux.HandleFunc("/api/audits/is-admin", a.protected(a.handleIsAdmin))
	a.mux.HandleFunc("/api/slaconfiguration", a.protected(a.handleSLAConfiguration))
	a.mux.HandleFunc("/api/slaconfiguration/bulk", a.protected(a.handleSLABulk))
	a.mux.HandleFunc("/api/admin/users", a.protected(a.handleAdminUsers))
	a.mux.HandleFunc("/api/admin/users/", a.protected(a.handleAdminUserScoped))
	a.mux.HandleFunc("/api/admin/roles", a.protected(a.handleAdminRoles))
	a.mux.HandleFunc("/api/admin/roles/", a.protected(a.handleAdminRoleScoped))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}

	// The chain is assembled once so the rate limiter's buckets survive
	// across requests. Limited requests are rejected before the body limit
	// or any handler work; RequestID stays outermost so 429 payloads still
	// carry a request id.
	h := http.Handler(a.mux)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, burst, perSecond)
	h = RequestID(h)
	a.handler = h

	return a
}

// Handler returns the full middleware-wrapped handler for the server.
func (a *API) Handler() http.Handler {
	return a.handler
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "casedesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// protected resolves the actor before the handler runs. Requests with an
// Authorization header must carry a valid bearer token; requests without
// one fall back to the configured development actor or get 401.
func (a *API) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			if a.devActor != nil {
				next(w, r.WithContext(identity.ContextWithActor(r.Context(), *a.devActor)))
				return
			}
			writeError(w, r, http.StatusUnauthorized, "authorization required")
			return
		}
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			writeError(w, r, http.StatusUnauthorized, "bearer token required")
			return
		}
		actor, err := identity.ParseToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(identity.ContextWithActor(r.Context(), actor)))
	}
}

// actor returns the request actor; protected guarantees it is present.
func actor(r *http.Request) identity.Actor {
	a, _ := identity.ActorFromContext(r.Context())
	return a
}

// filterFor resolves the caller's coverage. The development actor is
// unrestricted by definition.
func (a *API) filterFor(ctx context.Context, act identity.Actor) (coverage.Filter, error) {
	if act.IsDev() {
		return coverage.Unrestricted, nil
	}
	return a.resolver.AllowedCustomers(ctx, act.UserID)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cases.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, cases.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, cases.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
