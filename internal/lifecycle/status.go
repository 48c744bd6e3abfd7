// Package lifecycle holds the pure rules of a convention's life: which status it
// is in on a given day and which invoices its billing schedule is made of.
package lifecycle

import (
	"time"

	"github.com/diewo77/conventions/internal/clock"
	"github.com/diewo77/conventions/internal/models"
)

// DeriveStatus returns the status c should carry on today given its invoices.
// Rules are evaluated in order and the first match wins:
//
//  1. archived                                  -> ARCHIVED
//  2. at least one invoice and all paid         -> COMPLETED
//  3. today before start                        -> AWAITING
//  4. an overdue invoice, or past end and owing -> OVERDUE
//  5. otherwise                                 -> IN_PROGRESS
func DeriveStatus(c *models.Convention, invoices []models.Invoice, today time.Time) models.ConventionStatus {
	today = clock.Day(today)

	if c.Archived {
		return models.StatusArchived
	}
	if models.AllPaid(invoices) {
		return models.StatusCompleted
	}
	if today.Before(c.Start()) {
		return models.StatusAwaiting
	}
	if models.AnyOverdue(invoices, today) {
		return models.StatusOverdue
	}
	if end, ok := c.End(); ok && today.After(end) && models.HasUnpaid(invoices) {
		return models.StatusOverdue
	}
	return models.StatusInProgress
}

// Recompute derives the status of c from its loaded invoices and stores it on c.
// It reports whether the status changed.
func Recompute(c *models.Convention, today time.Time) bool {
	next := DeriveStatus(c, c.Invoices, today)
	if next == c.Status {
		return false
	}
	c.Status = next
	return true
}

// MarkLate relabels the overdue invoices of c as LATE and returns the ones it touched.
// The label is informational; IsOverdue never reads it.
func MarkLate(c *models.Convention, today time.Time) []*models.Invoice {
	var touched []*models.Invoice
	for i := range c.Invoices {
		inv := &c.Invoices[i]
		if inv.IsOverdue(today) && inv.PaymentStatus != models.PaymentLate {
			inv.PaymentStatus = models.PaymentLate
			touched = append(touched, inv)
		}
	}
	return touched
}
