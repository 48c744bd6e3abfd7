package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidInput       = errors.New("invalid_input")
	ErrDuplicateReference = errors.New("duplicate_reference")
	ErrAlreadyArchived    = errors.New("already_archived")
	ErrNotArchived        = errors.New("not_archived")
	ErrArchivedConvention = errors.New("convention_archived")
	ErrAlreadyPaid        = errors.New("invoice_already_paid")
	ErrUnpaidInvoices     = errors.New("unpaid_invoices")
)

// UnpaidInvoicesError lists the invoices that block an archive.
// It matches ErrUnpaidInvoices with errors.Is.
type UnpaidInvoicesError struct {
	Numbers []string
}

func (e *UnpaidInvoicesError) Error() string {
	return fmt.Sprintf("%d unpaid invoice(s): %s", len(e.Numbers), strings.Join(e.Numbers, ", "))
}

func (e *UnpaidInvoicesError) Is(target error) bool { return target == ErrUnpaidInvoices }

// OpError records which operation failed on which convention.
type OpError struct {
	Op           string
	ConventionID uint
	Err          error
}

func (e *OpError) Error() string {
	if e.ConventionID != 0 {
		return fmt.Sprintf("%s convention %d: %v", e.Op, e.ConventionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, id uint, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, ConventionID: id, Err: err}
}
