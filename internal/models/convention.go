package models

import (
	"time"

	"github.com/diewo77/conventions/internal/clock"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DefaultExpiringWindow is the number of days used by IsExpiringWithin when callers pass 0.
const DefaultExpiringWindow = 30

// Convention is a framework contract billed through a sequence of invoices.
type Convention struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Identification
	Reference    string `gorm:"size:50;uniqueIndex;not null" json:"reference"`
	ERPReference string `gorm:"column:erp_reference;size:100;uniqueIndex;not null" json:"erp_reference"`
	Label        string `gorm:"size:255;not null" json:"label"`

	// Dates
	StartDate     datatypes.Date  `gorm:"not null" json:"start_date"`
	EndDate       *datatypes.Date `json:"end_date,omitempty"`
	SignatureDate *datatypes.Date `json:"signature_date,omitempty"`

	// Billing
	TotalAmount decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"total_amount"`
	Periodicity Periodicity         `gorm:"size:20" json:"periodicity,omitempty"`

	Status ConventionStatus `gorm:"size:20;index;not null;default:'AWAITING'" json:"status"`

	// Archive metadata; set by Archive, cleared by Restore
	Archived      bool       `gorm:"not null;default:false;index" json:"archived"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	ArchivedBy    string     `gorm:"size:100" json:"archived_by,omitempty"`
	ArchiveReason string     `gorm:"size:500" json:"archive_reason,omitempty"`

	Invoices []Invoice `gorm:"foreignKey:ConventionID;constraint:OnDelete:CASCADE" json:"invoices,omitempty"`
}

// Start returns the start date as a civil day.
func (c *Convention) Start() time.Time { return clock.Day(time.Time(c.StartDate)) }

// End returns the end date as a civil day and whether it is set.
func (c *Convention) End() (time.Time, bool) {
	if c.EndDate == nil {
		return time.Time{}, false
	}
	return clock.Day(time.Time(*c.EndDate)), true
}

// AllInvoicesPaid is true when the convention has invoices and all of them are paid.
func (c *Convention) AllInvoicesPaid() bool { return AllPaid(c.Invoices) }

// HasOverdueInvoice reports whether any invoice is overdue as of today.
func (c *Convention) HasOverdueInvoice(today time.Time) bool {
	return AnyOverdue(c.Invoices, today)
}

// PaidCount returns the number of paid invoices.
func (c *Convention) PaidCount() int {
	n := 0
	for i := range c.Invoices {
		if c.Invoices[i].IsPaid() {
			n++
		}
	}
	return n
}

// UnpaidCount returns the number of invoices not yet paid.
func (c *Convention) UnpaidCount() int { return len(c.Invoices) - c.PaidCount() }

// OverdueCount returns the number of overdue invoices as of today.
func (c *Convention) OverdueCount(today time.Time) int {
	n := 0
	for i := range c.Invoices {
		if c.Invoices[i].IsOverdue(today) {
			n++
		}
	}
	return n
}

// PaidAmount sums the tax-inclusive amount of paid invoices.
func (c *Convention) PaidAmount() decimal.Decimal {
	return c.sumInclTax(func(inv *Invoice) bool { return inv.IsPaid() })
}

// UnpaidAmount sums the tax-inclusive amount of unpaid invoices.
func (c *Convention) UnpaidAmount() decimal.Decimal {
	return c.sumInclTax(func(inv *Invoice) bool { return !inv.IsPaid() })
}

// OverdueAmount sums the tax-inclusive amount of overdue invoices.
func (c *Convention) OverdueAmount(today time.Time) decimal.Decimal {
	return c.sumInclTax(func(inv *Invoice) bool { return inv.IsOverdue(today) })
}

func (c *Convention) sumInclTax(keep func(*Invoice) bool) decimal.Decimal {
	total := decimal.Zero
	for i := range c.Invoices {
		if keep(&c.Invoices[i]) {
			total = total.Add(c.Invoices[i].AmountInclTax)
		}
	}
	return total
}

// IsExpiringWithin reports whether the end date falls in [today, today+days].
// A days value <= 0 uses DefaultExpiringWindow.
func (c *Convention) IsExpiringWithin(today time.Time, days int) bool {
	if days <= 0 {
		days = DefaultExpiringWindow
	}
	left, ok := c.DaysUntilEnd(today)
	return ok && left >= 0 && left <= days
}

// DaysUntilEnd returns the days left before the end date; ok is false when no end date is set.
func (c *Convention) DaysUntilEnd(today time.Time) (days int, ok bool) {
	end, ok := c.End()
	if !ok {
		return 0, false
	}
	return clock.DaysBetween(today, end), true
}
