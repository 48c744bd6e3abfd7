package services

import (
	"context"
	"time"

	"github.com/diewo77/conventions/internal/models"
)

// ConventionFilter narrows ListConventions. Zero fields do not filter.
type ConventionFilter struct {
	Statuses []models.ConventionStatus
	Archived *bool
	// StartOnOrBefore keeps conventions whose start date is <= the given day.
	StartOnOrBefore *time.Time
	// EndBefore keeps conventions with an end date strictly before the given day.
	EndBefore *time.Time
	// EndFrom and EndTo keep conventions whose end date falls in [EndFrom, EndTo].
	EndFrom *time.Time
	EndTo   *time.Time
	// WithInvoices preloads the invoices of every convention.
	WithInvoices bool
}

// InvoiceFilter narrows ListInvoices. Zero fields do not filter.
type InvoiceFilter struct {
	ConventionID uint
	// DueBefore keeps invoices due strictly before the given day.
	DueBefore *time.Time
	// Unsettled keeps UNPAID and LATE invoices.
	Unsettled bool
	// ActiveOnly drops the invoices of archived conventions.
	ActiveOnly bool
}

// Store is the persistence the lifecycle services need.
// Lookups by id return ErrNotFound when the record does not exist.
type Store interface {
	// Transaction runs fn against a Store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// LoadConvention returns the convention with its invoices ordered by billing date.
	LoadConvention(ctx context.Context, id uint) (*models.Convention, error)
	LoadInvoice(ctx context.Context, id uint) (*models.Invoice, error)

	CreateConvention(ctx context.Context, c *models.Convention) error
	// SaveConvention updates the convention row only, never its invoices.
	SaveConvention(ctx context.Context, c *models.Convention) error
	CreateInvoices(ctx context.Context, invoices []models.Invoice) error
	SaveInvoice(ctx context.Context, inv *models.Invoice) error
	// DeleteConvention removes the convention and its invoices.
	DeleteConvention(ctx context.Context, id uint) error
	DeleteInvoice(ctx context.Context, id uint) error

	ListConventions(ctx context.Context, f ConventionFilter) ([]models.Convention, error)
	// OverdueInvoices returns UNPAID invoices due before asOf on non-archived conventions.
	OverdueInvoices(ctx context.Context, asOf time.Time) ([]models.Invoice, error)
	// ListInvoices returns invoices ordered by due date.
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]models.Invoice, error)
	// ReferenceTaken reports whether another convention than excludeID uses
	// reference or erpReference.
	ReferenceTaken(ctx context.Context, reference, erpReference string, excludeID uint) (bool, error)
}
