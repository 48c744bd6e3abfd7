package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/diewo77/conventions/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SweepName identifies one of the reconciliation sweeps.
type SweepName string

const (
	SweepDateTransitions SweepName = "date-transitions"
	SweepCompletions     SweepName = "completions"
	SweepOverdueInvoices SweepName = "overdue-invoices"
	SweepComprehensive   SweepName = "comprehensive"
)

// Sweeps lists every sweep in the order "all" runs them.
var Sweeps = []SweepName{SweepDateTransitions, SweepOverdueInvoices, SweepCompletions, SweepComprehensive}

// ParseSweepName validates a sweep name coming from a URL or the command line.
func ParseSweepName(s string) (SweepName, error) {
	for _, name := range Sweeps {
		if string(name) == s {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sweep %q", ErrInvalidInput, s)
}

// RecordError is a per-convention failure collected during a sweep.
type RecordError struct {
	ConventionID uint   `json:"convention_id"`
	Error        string `json:"error"`
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Sweep     SweepName     `json:"sweep"`
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Examined  int           `json:"examined"`
	Changed   int           `json:"changed"`
	Failed    []RecordError `json:"failed,omitempty"`
}

// Reconciler re-derives convention status in bulk. Candidates are selected with
// a store query and every record goes through the same write path as
// ConventionService.RecomputeStatus.
type Reconciler struct {
	store Store
	svc   *ConventionService
	log   zerolog.Logger
}

func NewReconciler(store Store, svc *ConventionService, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, svc: svc, log: log}
}

// Run executes the named sweep.
func (r *Reconciler) Run(ctx context.Context, name SweepName) (*SweepReport, error) {
	switch name {
	case SweepDateTransitions:
		return r.SweepDateTransitions(ctx)
	case SweepCompletions:
		return r.SweepCompletions(ctx)
	case SweepOverdueInvoices:
		return r.SweepOverdueInvoices(ctx)
	case SweepComprehensive:
		return r.SweepComprehensive(ctx)
	}
	return nil, fmt.Errorf("%w: unknown sweep %q", ErrInvalidInput, name)
}

// SweepDateTransitions picks AWAITING conventions that have started and
// IN_PROGRESS conventions that have ended.
func (r *Reconciler) SweepDateTransitions(ctx context.Context) (*SweepReport, error) {
	return r.sweep(ctx, SweepDateTransitions, func(ctx context.Context, today time.Time) ([]uint, error) {
		notArchived := false
		started, err := r.store.ListConventions(ctx, ConventionFilter{
			Statuses:        []models.ConventionStatus{models.StatusAwaiting},
			Archived:        &notArchived,
			StartOnOrBefore: &today,
		})
		if err != nil {
			return nil, err
		}
		ended, err := r.store.ListConventions(ctx, ConventionFilter{
			Statuses:     []models.ConventionStatus{models.StatusInProgress},
			Archived:     &notArchived,
			EndBefore:    &today,
			WithInvoices: true,
		})
		if err != nil {
			return nil, err
		}
		ids := conventionIDs(started, nil)
		return append(ids, conventionIDs(ended, func(c *models.Convention) bool {
			return models.HasUnpaid(c.Invoices)
		})...), nil
	}, false)
}

// SweepCompletions picks open conventions whose invoices are all paid.
func (r *Reconciler) SweepCompletions(ctx context.Context) (*SweepReport, error) {
	return r.sweep(ctx, SweepCompletions, func(ctx context.Context, _ time.Time) ([]uint, error) {
		notArchived := false
		open, err := r.store.ListConventions(ctx, ConventionFilter{
			Statuses:     []models.ConventionStatus{models.StatusAwaiting, models.StatusInProgress, models.StatusOverdue},
			Archived:     &notArchived,
			WithInvoices: true,
		})
		if err != nil {
			return nil, err
		}
		return conventionIDs(open, (*models.Convention).AllInvoicesPaid), nil
	}, false)
}

// SweepOverdueInvoices relabels unpaid invoices past their due date as LATE and
// re-derives the status of their conventions.
func (r *Reconciler) SweepOverdueInvoices(ctx context.Context) (*SweepReport, error) {
	return r.sweep(ctx, SweepOverdueInvoices, func(ctx context.Context, today time.Time) ([]uint, error) {
		invoices, err := r.store.OverdueInvoices(ctx, today)
		if err != nil {
			return nil, err
		}
		seen := make(map[uint]bool)
		var ids []uint
		for _, inv := range invoices {
			if !seen[inv.ConventionID] {
				seen[inv.ConventionID] = true
				ids = append(ids, inv.ConventionID)
			}
		}
		return ids, nil
	}, true)
}

// SweepComprehensive re-derives the status of every non-archived convention.
func (r *Reconciler) SweepComprehensive(ctx context.Context) (*SweepReport, error) {
	return r.sweep(ctx, SweepComprehensive, func(ctx context.Context, _ time.Time) ([]uint, error) {
		notArchived := false
		all, err := r.store.ListConventions(ctx, ConventionFilter{Archived: &notArchived})
		if err != nil {
			return nil, err
		}
		return conventionIDs(all, nil), nil
	}, true)
}

type candidateFunc func(ctx context.Context, today time.Time) ([]uint, error)

func (r *Reconciler) sweep(ctx context.Context, name SweepName, candidates candidateFunc, markLate bool) (*SweepReport, error) {
	report := &SweepReport{
		Sweep:     name,
		RunID:     uuid.NewString(),
		StartedAt: r.svc.clock.Now(),
	}
	begin := time.Now()
	log := r.log.With().Str("sweep", string(name)).Str("run_id", report.RunID).Logger()

	ids, err := candidates(ctx, r.svc.today())
	if err != nil {
		log.Error().Err(err).Msg("loading candidates failed")
		return report, opError(string(name), 0, err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++
		c, changed, err := r.svc.reconcile(ctx, id, markLate)
		if err != nil {
			log.Error().Err(err).Uint("convention_id", id).Msg("reconcile failed")
			report.Failed = append(report.Failed, RecordError{ConventionID: id, Error: err.Error()})
			continue
		}
		if changed {
			report.Changed++
			log.Debug().Uint("convention_id", id).Str("status", string(c.Status)).Msg("status updated")
		}
	}

	report.Duration = time.Since(begin)
	log.Info().Int("examined", report.Examined).Int("changed", report.Changed).
		Int("failed", len(report.Failed)).Dur("duration", report.Duration).Msg("sweep finished")
	return report, nil
}

// RunAll runs every sweep in order and stops at the first one that cannot load
// its candidates.
func (r *Reconciler) RunAll(ctx context.Context) ([]*SweepReport, error) {
	reports := make([]*SweepReport, 0, len(Sweeps))
	for _, name := range Sweeps {
		rep, err := r.Run(ctx, name)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func conventionIDs(list []models.Convention, keep func(*models.Convention) bool) []uint {
	ids := make([]uint, 0, len(list))
	for i := range list {
		if keep == nil || keep(&list[i]) {
			ids = append(ids, list[i].ID)
		}
	}
	return ids
}
