package models

import (
	"time"

	"github.com/diewo77/conventions/internal/clock"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DefaultTaxRate is the VAT percentage applied to generated invoices.
var DefaultTaxRate = decimal.NewFromInt(19)

var hundred = decimal.NewFromInt(100)

// Invoice represents one billing cycle of a convention.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Invoice identification
	Number string `gorm:"size:100;uniqueIndex;not null" json:"number"`

	// Parent convention
	ConventionID uint        `gorm:"index;not null" json:"convention_id"`
	Convention   *Convention `gorm:"foreignKey:ConventionID" json:"-"`

	// Invoice dates
	BillingDate datatypes.Date `gorm:"not null" json:"billing_date"`
	DueDate     datatypes.Date `gorm:"not null;index" json:"due_date"`

	// Amounts; TaxRate is a percentage (19 means 19%)
	AmountExclTax decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount_excl_tax"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:19" json:"tax_rate"`
	AmountInclTax decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount_incl_tax"`

	// Payment
	PaymentStatus    PaymentStatus   `gorm:"size:20;index;not null;default:'UNPAID'" json:"payment_status"`
	PaymentMode      string          `gorm:"size:50" json:"payment_mode,omitempty"`
	PaymentReference string          `gorm:"size:100" json:"payment_reference,omitempty"`
	PaidOn           *datatypes.Date `json:"paid_on,omitempty"`

	Notes string `gorm:"size:2000" json:"notes,omitempty"`

	// Mirrors the owning convention's archive flag
	Archived   bool       `gorm:"not null;default:false" json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// IsPaid returns true once a payment has been registered.
func (i *Invoice) IsPaid() bool {
	return i.PaymentStatus == PaymentPaid
}

// IsOverdue reports whether the invoice is unpaid and its due date is before today.
// The stored PaymentLate label is ignored on purpose.
func (i *Invoice) IsOverdue(today time.Time) bool {
	return !i.IsPaid() && i.Due().Before(clock.Day(today))
}

// Billing returns the billing date as a civil day.
func (i *Invoice) Billing() time.Time { return clock.Day(time.Time(i.BillingDate)) }

// Due returns the due date as a civil day.
func (i *Invoice) Due() time.Time { return clock.Day(time.Time(i.DueDate)) }

// DaysOverdue returns how many days the invoice is past due, 0 when it is not overdue.
func (i *Invoice) DaysOverdue(today time.Time) int {
	if !i.IsOverdue(today) {
		return 0
	}
	return clock.DaysBetween(i.Due(), today)
}

// DaysUntilDue returns the days left before the due date (negative once passed).
func (i *Invoice) DaysUntilDue(today time.Time) int {
	return clock.DaysBetween(today, i.Due())
}

// SetAmount sets the amount excluding tax and recomputes the tax-inclusive amount.
// A zero tax rate is replaced by DefaultTaxRate.
func (i *Invoice) SetAmount(exclTax, rate decimal.Decimal) {
	if rate.IsZero() {
		rate = DefaultTaxRate
	}
	i.AmountExclTax = exclTax.Round(2)
	i.TaxRate = rate
	i.AmountInclTax = InclTax(i.AmountExclTax, rate)
}

// InclTax returns exclTax × (1 + rate/100) rounded half-up to 2 decimals.
func InclTax(exclTax, rate decimal.Decimal) decimal.Decimal {
	return exclTax.Mul(decimal.NewFromInt(1).Add(rate.Div(hundred))).Round(2)
}

// HasUnpaid reports whether at least one invoice is not PAID.
func HasUnpaid(invoices []Invoice) bool {
	for i := range invoices {
		if !invoices[i].IsPaid() {
			return true
		}
	}
	return false
}

// AllPaid reports whether invoices is non-empty and every invoice is PAID.
func AllPaid(invoices []Invoice) bool {
	return len(invoices) > 0 && !HasUnpaid(invoices)
}

// AnyOverdue reports whether at least one invoice is overdue as of today.
func AnyOverdue(invoices []Invoice, today time.Time) bool {
	for i := range invoices {
		if invoices[i].IsOverdue(today) {
			return true
		}
	}
	return false
}
