// Package store implements services.Store on top of gorm.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/diewo77/conventions/internal/models"
	"github.com/diewo77/conventions/internal/services"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// Gorm is a services.Store backed by a gorm database.
type Gorm struct {
	db *gorm.DB
}

var _ services.Store = (*Gorm)(nil)

func New(db *gorm.DB) *Gorm { return &Gorm{db: db} }

// DB exposes the underlying handle, mainly for migrations and tests.
func (s *Gorm) DB() *gorm.DB { return s.db }

func (s *Gorm) Transaction(ctx context.Context, fn func(tx services.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

func (s *Gorm) withInvoices(db *gorm.DB) *gorm.DB {
	return db.Preload("Invoices", func(db *gorm.DB) *gorm.DB {
		return db.Order("billing_date ASC, id ASC")
	})
}

func (s *Gorm) LoadConvention(ctx context.Context, id uint) (*models.Convention, error) {
	var c models.Convention
	if err := s.withInvoices(s.db.WithContext(ctx)).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Gorm) LoadInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *Gorm) CreateConvention(ctx context.Context, c *models.Convention) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error)
}

func (s *Gorm) SaveConvention(ctx context.Context, c *models.Convention) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error)
}

func (s *Gorm) CreateInvoices(ctx context.Context, invoices []models.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(&invoices).Error)
}

func (s *Gorm) SaveInvoice(ctx context.Context, inv *models.Invoice) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Save(inv).Error)
}

// DeleteConvention removes the invoices first so the cascade does not depend on
// the database enforcing foreign keys.
func (s *Gorm) DeleteConvention(ctx context.Context, id uint) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("convention_id = ?", id).Delete(&models.Invoice{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.Convention{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *Gorm) DeleteInvoice(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Invoice{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *Gorm) ListConventions(ctx context.Context, f services.ConventionFilter) ([]models.Convention, error) {
	q := s.db.WithContext(ctx).Model(&models.Convention{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Archived != nil {
		q = q.Where("archived = ?", *f.Archived)
	}
	if f.StartOnOrBefore != nil {
		q = q.Where("start_date <= ?", *f.StartOnOrBefore)
	}
	if f.EndBefore != nil {
		q = q.Where("end_date IS NOT NULL AND end_date < ?", *f.EndBefore)
	}
	if f.EndFrom != nil {
		q = q.Where("end_date IS NOT NULL AND end_date >= ?", *f.EndFrom)
	}
	if f.EndTo != nil {
		q = q.Where("end_date IS NOT NULL AND end_date <= ?", *f.EndTo)
	}
	if f.WithInvoices {
		q = s.withInvoices(q)
	}

	var list []models.Convention
	if err := q.Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Gorm) OverdueInvoices(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).
		Joins("JOIN conventions ON conventions.id = invoices.convention_id").
		Where("invoices.payment_status = ?", models.PaymentUnpaid).
		Where("invoices.due_date < ?", asOf).
		Where("conventions.archived = ?", false).
		Order("invoices.due_date ASC, invoices.id ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Gorm) ListInvoices(ctx context.Context, f services.InvoiceFilter) ([]models.Invoice, error) {
	q := s.db.WithContext(ctx).Model(&models.Invoice{})
	if f.ConventionID != 0 {
		q = q.Where("invoices.convention_id = ?", f.ConventionID)
	}
	if f.DueBefore != nil {
		q = q.Where("invoices.due_date < ?", *f.DueBefore)
	}
	if f.Unsettled {
		q = q.Where("invoices.payment_status <> ?", models.PaymentPaid)
	}
	if f.ActiveOnly {
		q = q.Joins("JOIN conventions ON conventions.id = invoices.convention_id").
			Where("conventions.archived = ?", false)
	}

	var invoices []models.Invoice
	if err := q.Order("invoices.due_date ASC, invoices.id ASC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Gorm) ReferenceTaken(ctx context.Context, reference, erpReference string, excludeID uint) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Convention{}).
		Where("reference = ? OR erp_reference = ?", reference, erpReference)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// translate maps driver errors onto the service sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return services.ErrDuplicateReference
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return services.ErrDuplicateReference
	}
	return err
}
