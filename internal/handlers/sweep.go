package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/conventions/httpx"
	"github.com/diewo77/conventions/internal/services"
	"github.com/rs/zerolog"
)

// Sweeper is the part of services.Reconciler the admin endpoints use.
type Sweeper interface {
	Run(ctx context.Context, name services.SweepName) (*services.SweepReport, error)
	RunAll(ctx context.Context) ([]*services.SweepReport, error)
}

// SweepHandler triggers reconciliation sweeps on demand.
type SweepHandler struct {
	sweeper Sweeper
	log     zerolog.Logger
}

func NewSweepHandler(sweeper Sweeper, log zerolog.Logger) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, log: log}
}

// Run handles POST /admin/sweeps/{name}; "all" runs every sweep in order.
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "all" {
		reports, err := h.sweeper.RunAll(r.Context())
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		httpx.JSON(w, http.StatusOK, reports)
		return
	}
	sweep, err := services.ParseSweepName(name)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "unknown_sweep", name)
		return
	}
	report, err := h.sweeper.Run(r.Context(), sweep)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
