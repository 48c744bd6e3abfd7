package main

import (
	"net/http"
	"time"

	"github.com/diewo77/conventions/auth"
	"github.com/diewo77/conventions/httpx"
	"github.com/diewo77/conventions/internal/app"
	"github.com/diewo77/conventions/internal/handlers"
	"github.com/diewo77/conventions/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux    *http.ServeMux
	db     *gorm.DB
	signer *auth.Signer

	conventions *handlers.ConventionHandler
	sweeps      *handlers.SweepHandler
	sessions    *handlers.SessionHandler
}

// NewApp creates a new application with all routes configured.
func NewApp(c *app.Components) *App {
	httpLog := logger.WithComponent("http")
	a := &App{
		mux:         http.NewServeMux(),
		db:          c.DB,
		signer:      c.Signer,
		conventions: handlers.NewConventionHandler(c.Service, httpLog),
		sweeps:      handlers.NewSweepHandler(c.Reconciler, httpLog),
		sessions:    handlers.NewSessionHandler(c.Signer),
	}
	a.setupRoutes()
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.signer.Middleware(a.mux).ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	ch := a.conventions

	// Public
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /session", a.sessions.Whoami)
	a.mux.HandleFunc("POST /logout", a.sessions.Logout)
	a.mux.Handle("POST /session", a.requireActor(a.sessions.Login))

	// Conventions
	a.mux.Handle("GET /conventions", a.requireActor(ch.List))
	a.mux.Handle("POST /conventions", a.requireActor(ch.Create))
	a.mux.Handle("GET /conventions/archived", a.requireActor(ch.ListArchived))
	a.mux.Handle("GET /conventions/expiring", a.requireActor(ch.ListExpiring))
	a.mux.Handle("GET /conventions/{id}", a.requireActor(ch.Get))
	a.mux.Handle("PUT /conventions/{id}", a.requireActor(ch.Update))
	a.mux.Handle("DELETE /conventions/{id}", a.requireActor(ch.Delete))
	a.mux.Handle("POST /conventions/{id}/archive", a.requireActor(ch.Archive))
	a.mux.Handle("POST /conventions/{id}/restore", a.requireActor(ch.Restore))
	a.mux.Handle("POST /conventions/{id}/recompute", a.requireActor(ch.Recompute))
	a.mux.Handle("GET /conventions/{id}/invoices", a.requireActor(ch.ListInvoices))
	a.mux.Handle("POST /conventions/{id}/invoices/generate", a.requireActor(ch.GenerateSchedule))

	// Invoices
	a.mux.Handle("GET /invoices/overdue", a.requireActor(ch.ListOverdueInvoices))
	a.mux.Handle("POST /invoices/{id}/pay", a.requireActor(ch.RegisterPayment))
	a.mux.Handle("DELETE /invoices/{id}", a.requireActor(ch.DeleteInvoice))

	// Admin
	a.mux.Handle("POST /admin/sweeps/{name}", a.requireActor(a.sweeps.Run))
}

func (a *App) requireActor(h http.HandlerFunc) http.Handler {
	return auth.RequireActor(h)
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging logs every request with a request id, echoed in X-Request-ID.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		lg := logger.WithRequestID(id)
		lg.Info().
			Str("component", "http").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
