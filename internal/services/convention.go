package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/diewo77/conventions/internal/clock"
	"github.com/diewo77/conventions/internal/lifecycle"
	"github.com/diewo77/conventions/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	minArchiveReason = 5
	maxArchiveReason = 500
)

// ConventionInput is the writable part of a convention.
type ConventionInput struct {
	Reference     string
	ERPReference  string
	Label         string
	StartDate     time.Time
	EndDate       *time.Time
	SignatureDate *time.Time
	TotalAmount   decimal.NullDecimal
	Periodicity   models.Periodicity
}

func (in ConventionInput) validate() error {
	switch {
	case strings.TrimSpace(in.Reference) == "":
		return fmt.Errorf("%w: reference is required", ErrInvalidInput)
	case strings.TrimSpace(in.ERPReference) == "":
		return fmt.Errorf("%w: erp reference is required", ErrInvalidInput)
	case strings.TrimSpace(in.Label) == "":
		return fmt.Errorf("%w: label is required", ErrInvalidInput)
	case in.StartDate.IsZero():
		return fmt.Errorf("%w: start date is required", ErrInvalidInput)
	case in.TotalAmount.Valid && in.TotalAmount.Decimal.IsNegative():
		return fmt.Errorf("%w: total amount must not be negative", ErrInvalidInput)
	case in.Periodicity != models.PeriodicityNone && !in.Periodicity.Valid():
		return fmt.Errorf("%w: unknown periodicity %q", ErrInvalidInput, in.Periodicity)
	}
	if in.EndDate != nil && !clock.Day(*in.EndDate).After(clock.Day(in.StartDate)) {
		return lifecycle.ErrInvalidDateRange
	}
	return nil
}

func (in ConventionInput) apply(c *models.Convention) {
	c.Reference = strings.TrimSpace(in.Reference)
	c.ERPReference = strings.TrimSpace(in.ERPReference)
	c.Label = strings.TrimSpace(in.Label)
	c.StartDate = datatypes.Date(clock.Day(in.StartDate))
	c.EndDate = datePtr(in.EndDate)
	c.SignatureDate = datePtr(in.SignatureDate)
	c.TotalAmount = in.TotalAmount
	if c.TotalAmount.Valid {
		c.TotalAmount.Decimal = c.TotalAmount.Decimal.Round(2)
	}
	c.Periodicity = in.Periodicity
}

// lockedChange names the first billing term in changes from the one c was
// invoiced with, or returns "" when they match. The reference is part of every
// invoice number, so it is locked as well.
func (in ConventionInput) lockedChange(c *models.Convention) string {
	end, hasEnd := c.End()
	total := in.TotalAmount
	if total.Valid {
		total.Decimal = total.Decimal.Round(2)
	}
	switch {
	case strings.TrimSpace(in.Reference) != c.Reference:
		return "reference"
	case total.Valid != c.TotalAmount.Valid || (total.Valid && !total.Decimal.Equal(c.TotalAmount.Decimal)):
		return "total amount"
	case in.Periodicity != c.Periodicity:
		return "periodicity"
	case !clock.Day(in.StartDate).Equal(c.Start()):
		return "start date"
	case (in.EndDate != nil) != hasEnd || (hasEnd && !clock.Day(*in.EndDate).Equal(end)):
		return "end date"
	}
	return ""
}

// PaymentInput describes a payment registered against an invoice.
type PaymentInput struct {
	Mode      string
	Reference string
	// PaidOn defaults to today.
	PaidOn *time.Time
}

// ConventionSummary exposes the derived read-only facts of a convention.
type ConventionSummary struct {
	Convention        *models.Convention `json:"convention"`
	InvoiceCount      int                `json:"invoice_count"`
	PaidCount         int                `json:"paid_count"`
	UnpaidCount       int                `json:"unpaid_count"`
	OverdueCount      int                `json:"overdue_count"`
	PaidAmount        decimal.Decimal    `json:"paid_amount"`
	UnpaidAmount      decimal.Decimal    `json:"unpaid_amount"`
	OverdueAmount     decimal.Decimal    `json:"overdue_amount"`
	AllInvoicesPaid   bool               `json:"all_invoices_paid"`
	HasOverdueInvoice bool               `json:"has_overdue_invoice"`
	ExpiringSoon      bool               `json:"expiring_soon"`
	DaysUntilEnd      *int               `json:"days_until_end,omitempty"`
}

// ConventionService runs every mutation of a convention and re-derives its
// status afterwards.
type ConventionService struct {
	store          Store
	clock          clock.Clock
	notifier       Notifier
	log            zerolog.Logger
	taxRate        decimal.Decimal
	expiringWindow int
}

// Option configures a ConventionService.
type Option func(*ConventionService)

// WithNotifier sets the hook called after committed status changes.
func WithNotifier(n Notifier) Option { return func(s *ConventionService) { s.notifier = n } }

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option { return func(s *ConventionService) { s.log = l } }

// WithTaxRate overrides the tax rate of generated invoices.
func WithTaxRate(rate decimal.Decimal) Option { return func(s *ConventionService) { s.taxRate = rate } }

// WithExpiringWindow sets the default window, in days, of ListExpiring and Summary.
func WithExpiringWindow(days int) Option {
	return func(s *ConventionService) { s.expiringWindow = days }
}

func NewConventionService(store Store, clk clock.Clock, opts ...Option) *ConventionService {
	s := &ConventionService{
		store:          store,
		clock:          clk,
		log:            zerolog.Nop(),
		taxRate:        models.DefaultTaxRate,
		expiringWindow: models.DefaultExpiringWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ConventionService) today() time.Time { return clock.Today(s.clock) }

// Create saves a new convention, generates its invoice schedule when the billing
// inputs are complete and sets its initial status.
func (s *ConventionService) Create(ctx context.Context, in ConventionInput) (*models.Convention, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	today := s.today()

	c := &models.Convention{}
	in.apply(c)
	c.Status = lifecycle.DeriveStatus(c, nil, today)

	err := s.store.Transaction(ctx, func(tx Store) error {
		taken, err := tx.ReferenceTaken(ctx, c.Reference, c.ERPReference, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateReference
		}
		if err := tx.CreateConvention(ctx, c); err != nil {
			return err
		}
		if err := s.generate(ctx, tx, c); err != nil {
			if !errors.Is(err, lifecycle.ErrMissingScheduleInput) {
				return err
			}
			s.log.Warn().Err(err).Str("reference", c.Reference).Msg("convention created without invoices")
		}
		if lifecycle.Recompute(c, today) {
			return tx.SaveConvention(ctx, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create convention: %w", err)
	}
	s.log.Info().Uint("convention_id", c.ID).Str("reference", c.Reference).
		Int("invoices", len(c.Invoices)).Str("status", string(c.Status)).Msg("convention created")
	return c, nil
}

// Update rewrites the convention fields. Once invoices exist, the reference and
// the billing terms (total, periodicity, start and end) can no longer change.
func (s *ConventionService) Update(ctx context.Context, id uint, in ConventionInput) (*models.Convention, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		c    *models.Convention
		from models.ConventionStatus
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		var err error
		if c, err = tx.LoadConvention(ctx, id); err != nil {
			return err
		}
		if c.Archived {
			return ErrArchivedConvention
		}
		if len(c.Invoices) > 0 {
			if field := in.lockedChange(c); field != "" {
				return fmt.Errorf("%w: %s cannot change once invoices exist", ErrInvalidInput, field)
			}
		}
		from = c.Status
		in.apply(c)
		taken, err := tx.ReferenceTaken(ctx, c.Reference, c.ERPReference, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateReference
		}
		lifecycle.Recompute(c, s.today())
		return tx.SaveConvention(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("update convention %d: %w", id, err)
	}
	s.notify(ctx, c, from)
	return c, nil
}

// GenerateSchedule creates the invoices of a convention that has none yet.
// It is a no-op when invoices already exist.
func (s *ConventionService) GenerateSchedule(ctx context.Context, id uint) error {
	var (
		c    *models.Convention
		from models.ConventionStatus
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		var err error
		if c, err = tx.LoadConvention(ctx, id); err != nil {
			return err
		}
		if len(c.Invoices) > 0 {
			return nil
		}
		if c.Archived {
			return ErrArchivedConvention
		}
		if err := s.generate(ctx, tx, c); err != nil {
			return err
		}
		from = c.Status
		if lifecycle.Recompute(c, s.today()) {
			return tx.SaveConvention(ctx, c)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("generate schedule %d: %w", id, err)
	}
	s.notify(ctx, c, from)
	return nil
}

func (s *ConventionService) generate(ctx context.Context, tx Store, c *models.Convention) error {
	in := lifecycle.InputFor(c)
	in.TaxRate = s.taxRate
	invoices, err := lifecycle.GenerateSchedule(in)
	if err != nil {
		return err
	}
	if err := tx.CreateInvoices(ctx, invoices); err != nil {
		return err
	}
	c.Invoices = invoices
	return nil
}

// RecomputeStatus re-derives and persists the status of a convention.
func (s *ConventionService) RecomputeStatus(ctx context.Context, id uint) (models.ConventionStatus, error) {
	c, _, err := s.reconcile(ctx, id, false)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

// reconcile loads a convention, optionally relabels its overdue invoices as LATE,
// and saves the derived status. It is the single write path shared by the
// service and the reconciler.
func (s *ConventionService) reconcile(ctx context.Context, id uint, markLate bool) (*models.Convention, bool, error) {
	var (
		c       *models.Convention
		from    models.ConventionStatus
		changed bool
	)
	today := s.today()
	err := s.store.Transaction(ctx, func(tx Store) error {
		var err error
		if c, err = tx.LoadConvention(ctx, id); err != nil {
			return err
		}
		if markLate && !c.Archived {
			for _, inv := range lifecycle.MarkLate(c, today) {
				if err := tx.SaveInvoice(ctx, inv); err != nil {
					return err
				}
			}
		}
		from = c.Status
		if changed = lifecycle.Recompute(c, today); changed {
			return tx.SaveConvention(ctx, c)
		}
		return nil
	})
	if err != nil {
		return nil, false, opError("recompute", id, err)
	}
	s.notify(ctx, c, from)
	return c, changed, nil
}

// Archive freezes a convention. All its invoices must be paid.
func (s *ConventionService) Archive(ctx context.Context, id uint, actor, reason string) error {
	actor = strings.TrimSpace(actor)
	reason = strings.TrimSpace(reason)
	if actor == "" {
		return fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(reason); n < minArchiveReason || n > maxArchiveReason {
		return fmt.Errorf("%w: reason must be %d to %d characters", ErrInvalidInput, minArchiveReason, maxArchiveReason)
	}

	var (
		c    *models.Convention
		from models.ConventionStatus
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		var err error
		if c, err = tx.LoadConvention(ctx, id); err != nil {
			return err
		}
		if c.Archived {
			return ErrAlreadyArchived
		}
		var unpaid []string
		for _, inv := range c.Invoices {
			if !inv.IsPaid() {
				unpaid = append(unpaid, inv.Number)
			}
		}
		if len(unpaid) > 0 {
			return &UnpaidInvoicesError{Numbers: unpaid}
		}

		now := s.clock.Now()
		c.Archived = true
		c.ArchivedAt = &now
		c.ArchivedBy = actor
		c.ArchiveReason = reason
		for i := range c.Invoices {
			c.Invoices[i].Archived = true
			c.Invoices[i].ArchivedAt = &now
			if err := tx.SaveInvoice(ctx, &c.Invoices[i]); err != nil {
				return err
			}
		}
		from = c.Status
		lifecycle.Recompute(c, s.today())
		return tx.SaveConvention(ctx, c)
	})
	if err != nil {
		return fmt.Errorf("archive convention %d: %w", id, err)
	}
	s.log.Info().Uint("convention_id", id).Str("actor", actor).Msg("convention archived")
	s.notify(ctx, c, from)
	return nil
}

// Restore lifts the archive of a convention and re-derives its status.
func (s *ConventionService) Restore(ctx context.Context, id uint) error {
	var (
		c    *models.Convention
		from models.ConventionStatus
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		var err error
		if c, err = tx.LoadConvention(ctx, id); err != nil {
			return err
		}
		if !c.Archived {
			return ErrNotArchived
		}
		c.Archived = false
		c.ArchivedAt = nil
		c.ArchivedBy = ""
		c.ArchiveReason = ""
		for i := range c.Invoices {
			c.Invoices[i].Archived = false
			c.Invoices[i].ArchivedAt = nil
			if err := tx.SaveInvoice(ctx, &c.Invoices[i]); err != nil {
				return err
			}
		}
		from = c.Status
		lifecycle.Recompute(c, s.today())
		return tx.SaveConvention(ctx, c)
	})
	if err != nil {
		return fmt.Errorf("restore convention %d: %w", id, err)
	}
	s.log.Info().Uint("convention_id", id).Str("status", string(c.Status)).Msg("convention restored")
	s.notify(ctx, c, from)
	return nil
}

// RegisterPayment marks an invoice as paid and re-derives its convention status.
func (s *ConventionService) RegisterPayment(ctx context.Context, invoiceID uint, in PaymentInput) (*models.Invoice, error) {
	paidOn := s.today()
	if in.PaidOn != nil {
		paidOn = clock.Day(*in.PaidOn)
	}

	var (
		c    *models.Convention
		inv  *models.Invoice
		from models.ConventionStatus
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		var err error
		if inv, err = tx.LoadInvoice(ctx, invoiceID); err != nil {
			return err
		}
		if inv.IsPaid() {
			return ErrAlreadyPaid
		}
		if c, err = tx.LoadConvention(ctx, inv.ConventionID); err != nil {
			return err
		}
		if c.Archived {
			return ErrArchivedConvention
		}

		day := datatypes.Date(paidOn)
		inv.PaymentStatus = models.PaymentPaid
		inv.PaymentMode = strings.TrimSpace(in.Mode)
		inv.PaymentReference = strings.TrimSpace(in.Reference)
		inv.PaidOn = &day
		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return err
		}
		for i := range c.Invoices {
			if c.Invoices[i].ID == inv.ID {
				c.Invoices[i] = *inv
			}
		}
		from = c.Status
		if lifecycle.Recompute(c, s.today()) {
			return tx.SaveConvention(ctx, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register payment %d: %w", invoiceID, err)
	}
	s.notify(ctx, c, from)
	return inv, nil
}

// DeleteInvoice removes one invoice and re-derives its convention status.
func (s *ConventionService) DeleteInvoice(ctx context.Context, invoiceID uint) error {
	var (
		c    *models.Convention
		from models.ConventionStatus
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		inv, err := tx.LoadInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if c, err = tx.LoadConvention(ctx, inv.ConventionID); err != nil {
			return err
		}
		if c.Archived {
			return ErrArchivedConvention
		}
		if err := tx.DeleteInvoice(ctx, invoiceID); err != nil {
			return err
		}
		kept := c.Invoices[:0]
		for _, other := range c.Invoices {
			if other.ID != invoiceID {
				kept = append(kept, other)
			}
		}
		c.Invoices = kept
		from = c.Status
		if lifecycle.Recompute(c, s.today()) {
			return tx.SaveConvention(ctx, c)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", invoiceID, err)
	}
	s.notify(ctx, c, from)
	return nil
}

// Delete removes a convention and its invoices. Archived conventions must be
// restored first.
func (s *ConventionService) Delete(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx Store) error {
		c, err := tx.LoadConvention(ctx, id)
		if err != nil {
			return err
		}
		if c.Archived {
			return ErrArchivedConvention
		}
		return tx.DeleteConvention(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete convention %d: %w", id, err)
	}
	s.log.Info().Uint("convention_id", id).Msg("convention deleted")
	return nil
}

func (s *ConventionService) Get(ctx context.Context, id uint) (*models.Convention, error) {
	c, err := s.store.LoadConvention(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get convention %d: %w", id, err)
	}
	return c, nil
}

// Summary returns the convention with its derived counters and amounts.
func (s *ConventionService) Summary(ctx context.Context, id uint) (*ConventionSummary, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.summarize(c), nil
}

func (s *ConventionService) summarize(c *models.Convention) *ConventionSummary {
	today := s.today()
	sum := &ConventionSummary{
		Convention:        c,
		InvoiceCount:      len(c.Invoices),
		PaidCount:         c.PaidCount(),
		UnpaidCount:       c.UnpaidCount(),
		OverdueCount:      c.OverdueCount(today),
		PaidAmount:        c.PaidAmount(),
		UnpaidAmount:      c.UnpaidAmount(),
		OverdueAmount:     c.OverdueAmount(today),
		AllInvoicesPaid:   c.AllInvoicesPaid(),
		HasOverdueInvoice: c.HasOverdueInvoice(today),
		ExpiringSoon:      c.IsExpiringWithin(today, s.expiringWindow),
	}
	if days, ok := c.DaysUntilEnd(today); ok {
		sum.DaysUntilEnd = &days
	}
	return sum
}

// List returns the conventions matching f in id order.
func (s *ConventionService) List(ctx context.Context, f ConventionFilter) ([]models.Convention, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, st)
		}
	}
	return s.store.ListConventions(ctx, f)
}

// Invoices returns the invoices of one convention in billing order.
func (s *ConventionService) Invoices(ctx context.Context, id uint) ([]models.Invoice, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Invoices, nil
}

// ListOverdueInvoices returns the unpaid or LATE invoices past their due date on
// conventions that are not archived.
func (s *ConventionService) ListOverdueInvoices(ctx context.Context) ([]models.Invoice, error) {
	today := s.today()
	return s.store.ListInvoices(ctx, InvoiceFilter{DueBefore: &today, Unsettled: true, ActiveOnly: true})
}

func (s *ConventionService) ListArchived(ctx context.Context) ([]models.Convention, error) {
	archived := true
	return s.store.ListConventions(ctx, ConventionFilter{Archived: &archived})
}

// ListExpiring returns non-archived conventions ending within days from today.
// A days value <= 0 uses the configured window.
func (s *ConventionService) ListExpiring(ctx context.Context, days int) ([]models.Convention, error) {
	if days <= 0 {
		days = s.expiringWindow
	}
	archived := false
	from := s.today()
	to := from.AddDate(0, 0, days)
	return s.store.ListConventions(ctx, ConventionFilter{
		Archived: &archived,
		EndFrom:  &from,
		EndTo:    &to,
	})
}

func (s *ConventionService) notify(ctx context.Context, c *models.Convention, from models.ConventionStatus) {
	if s.notifier == nil || c == nil || from == "" || c.Status == from {
		return
	}
	if err := s.notifier.StatusChanged(ctx, c, from); err != nil {
		s.log.Error().Err(err).Uint("convention_id", c.ID).Msg("status change notification failed")
	}
}

func datePtr(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := datatypes.Date(clock.Day(*t))
	return &d
}
