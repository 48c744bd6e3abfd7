package lifecycle

import (
	"fmt"
	"time"

	"github.com/diewo77/conventions/internal/clock"
	"github.com/diewo77/conventions/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ScheduleInput carries what the generator needs to bill a convention.
type ScheduleInput struct {
	ConventionID uint
	Reference    string
	Total        decimal.NullDecimal
	Start        time.Time
	End          *time.Time
	Periodicity  models.Periodicity
	// TaxRate defaults to models.DefaultTaxRate when zero.
	TaxRate decimal.Decimal
}

// InputFor builds the schedule input of a persisted convention.
func InputFor(c *models.Convention) ScheduleInput {
	in := ScheduleInput{
		ConventionID: c.ID,
		Reference:    c.Reference,
		Total:        c.TotalAmount,
		Periodicity:  c.Periodicity,
	}
	if !time.Time(c.StartDate).IsZero() {
		in.Start = c.Start()
	}
	if end, ok := c.End(); ok {
		in.End = &end
	}
	return in
}

func (in ScheduleInput) validate() error {
	switch {
	case !in.Total.Valid:
		return fmt.Errorf("%w: total amount", ErrMissingScheduleInput)
	case in.Start.IsZero():
		return fmt.Errorf("%w: start date", ErrMissingScheduleInput)
	case in.End == nil:
		return fmt.Errorf("%w: end date", ErrMissingScheduleInput)
	case in.Periodicity == models.PeriodicityNone:
		return fmt.Errorf("%w: periodicity", ErrMissingScheduleInput)
	case !in.Periodicity.Valid():
		return fmt.Errorf("%w: unknown periodicity %q", ErrMissingScheduleInput, in.Periodicity)
	}
	if clock.Day(*in.End).Before(clock.Day(in.Start)) {
		return ErrInvalidDateRange
	}
	return nil
}

// GenerateSchedule builds the invoices billing in.Total over [Start, End].
//
// Each invoice bills total/N rounded to the cent; the last one absorbs the
// rounding remainder so the amounts sum to the total exactly. Each invoice is
// due one period after it is billed and the next invoice is billed on that due date.
func GenerateSchedule(in ScheduleInput) ([]models.Invoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	start := clock.Day(in.Start)
	n := PeriodCount(start, clock.Day(*in.End), in.Periodicity)
	step := in.Periodicity.Months()

	rate := in.TaxRate
	if rate.IsZero() {
		rate = models.DefaultTaxRate
	}

	total := in.Total.Decimal
	amounts := splitAmount(total, n)

	invoices := make([]models.Invoice, n)
	billing := start
	for i := range invoices {
		due := AddMonths(billing, step)

		inv := &invoices[i]
		inv.ConventionID = in.ConventionID
		inv.Number = InvoiceNumber(start.Year(), in.Reference, i+1)
		inv.BillingDate = toDate(billing)
		inv.DueDate = toDate(due)
		inv.PaymentStatus = models.PaymentUnpaid
		inv.Notes = fmt.Sprintf("Invoice %d/%d for convention %s", i+1, n, in.Reference)
		inv.SetAmount(amounts[i], rate)

		billing = due
	}
	return invoices, nil
}

// InvoiceNumber formats the number of the seq-th invoice of a convention.
func InvoiceNumber(year int, reference string, seq int) string {
	return fmt.Sprintf("FACT-%d-%s-%03d", year, reference, seq)
}

// splitAmount divides total into n cent-rounded shares. The last share takes the
// remainder unless that would make it negative.
func splitAmount(total decimal.Decimal, n int) []decimal.Decimal {
	per := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = per
	}
	last := total.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	if !last.IsNegative() {
		shares[n-1] = last
	}
	return shares
}

// PeriodCount returns how many invoices bill [start, end] at periodicity p.
// Months are counted on the inclusive range, so Jan 1 to Dec 31 is 12 months.
// Quarters and half-years round up, years count whole years only.
// The result is never below 1.
func PeriodCount(start, end time.Time, p models.Periodicity) int {
	months := MonthsBetween(clock.Day(start), clock.Day(end).AddDate(0, 0, 1))

	n := 1
	switch p {
	case models.PeriodicityMonthly:
		n = months
	case models.PeriodicityQuarterly, models.PeriodicitySemiannual:
		n = ceilDiv(months, p.Months())
	case models.PeriodicityAnnual:
		n = months / 12
	}
	if n < 1 {
		n = 1
	}
	return n
}

// MonthsBetween counts the whole months from a to b. A partial trailing month is
// not counted: Jan 15 to Feb 14 is 0, Jan 15 to Feb 15 is 1.
func MonthsBetween(a, b time.Time) int {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	months := (y2-y1)*12 + int(m2) - int(m1)
	switch {
	case months > 0 && d2 < d1:
		months--
	case months < 0 && d2 > d1:
		months++
	}
	return months
}

// AddMonths moves t by n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func toDate(t time.Time) datatypes.Date { return datatypes.Date(t) }

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
