package models

import (
	"fmt"
	"strings"
)

// ConventionStatus represents the lifecycle status of a convention.
// Only lifecycle.DeriveStatus decides which value a convention carries.
type ConventionStatus string

const (
	StatusAwaiting   ConventionStatus = "AWAITING"
	StatusInProgress ConventionStatus = "IN_PROGRESS"
	StatusOverdue    ConventionStatus = "OVERDUE"
	StatusCompleted  ConventionStatus = "COMPLETED"
	StatusArchived   ConventionStatus = "ARCHIVED"
)

// Valid reports whether s is one of the known statuses.
func (s ConventionStatus) Valid() bool {
	switch s {
	case StatusAwaiting, StatusInProgress, StatusOverdue, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// PaymentStatus represents the payment state of an invoice.
// PaymentLate is a cached label; Invoice.IsOverdue is the authoritative check.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
	PaymentLate   PaymentStatus = "LATE"
)

// Periodicity is the billing cadence of a convention.
// The empty value means the periodicity was never provided.
type Periodicity string

const (
	PeriodicityNone       Periodicity = ""
	PeriodicityMonthly    Periodicity = "MONTHLY"
	PeriodicityQuarterly  Periodicity = "QUARTERLY"
	PeriodicitySemiannual Periodicity = "SEMIANNUAL"
	PeriodicityAnnual     Periodicity = "ANNUAL"
	// PeriodicityOnce bills the whole convention in a single invoice.
	PeriodicityOnce Periodicity = "ONCE"
)

var periodicityAliases = map[string]Periodicity{
	"MONTHLY":     PeriodicityMonthly,
	"MENSUEL":     PeriodicityMonthly,
	"QUARTERLY":   PeriodicityQuarterly,
	"TRIMESTRIEL": PeriodicityQuarterly,
	"SEMIANNUAL":  PeriodicitySemiannual,
	"SEMESTRIEL":  PeriodicitySemiannual,
	"ANNUAL":      PeriodicityAnnual,
	"ANNUEL":      PeriodicityAnnual,
	"ONCE":        PeriodicityOnce,
	"PONCTUEL":    PeriodicityOnce,
	"UNSPECIFIED": PeriodicityOnce,
}

// ParsePeriodicity accepts the canonical names and the legacy French labels,
// case-insensitively. An empty string yields PeriodicityNone.
func ParsePeriodicity(s string) (Periodicity, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return PeriodicityNone, nil
	}
	p, ok := periodicityAliases[s]
	if !ok {
		return PeriodicityNone, fmt.Errorf("unknown periodicity %q", s)
	}
	return p, nil
}

// Valid reports whether p is a known cadence. PeriodicityNone is not valid.
func (p Periodicity) Valid() bool {
	switch p {
	case PeriodicityMonthly, PeriodicityQuarterly, PeriodicitySemiannual, PeriodicityAnnual, PeriodicityOnce:
		return true
	}
	return false
}

// Months returns the length of one billing period in months.
// Once and unset periodicities bill over a single month.
func (p Periodicity) Months() int {
	switch p {
	case PeriodicityQuarterly:
		return 3
	case PeriodicitySemiannual:
		return 6
	case PeriodicityAnnual:
		return 12
	default:
		return 1
	}
}
