// Package handlers exposes the convention service over JSON HTTP.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/conventions/auth"
	"github.com/diewo77/conventions/httpx"
	"github.com/diewo77/conventions/internal/models"
	"github.com/diewo77/conventions/internal/services"
	"github.com/diewo77/conventions/validation"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type conventionRequest struct {
	Reference     string           `json:"reference" validate:"required,convref"`
	ERPReference  string           `json:"erp_reference" validate:"required,max=100"`
	Label         string           `json:"label" validate:"required,max=255"`
	StartDate     string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string           `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	SignatureDate string           `json:"signature_date" validate:"omitempty,datetime=2006-01-02"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	Periodicity   string           `json:"periodicity"`
}

// input converts a request that passed struct validation.
func (req conventionRequest) input() (services.ConventionInput, error) {
	v := validation.Violations{}
	in := services.ConventionInput{
		Reference:    req.Reference,
		ERPReference: req.ERPReference,
		Label:        req.Label,
	}
	in.StartDate, _ = time.Parse(dateLayout, req.StartDate)
	in.EndDate = optionalDate(req.EndDate)
	in.SignatureDate = optionalDate(req.SignatureDate)
	if in.EndDate != nil && !in.EndDate.After(in.StartDate) {
		v["end_date"] = "must_be_after_start"
	}
	if req.TotalAmount != nil {
		validation.NonNegativeDecimal("total_amount", *req.TotalAmount, v)
		in.TotalAmount = decimal.NewNullDecimal(*req.TotalAmount)
	}
	p, err := models.ParsePeriodicity(req.Periodicity)
	if err != nil {
		v["periodicity"] = "invalid_value"
	}
	in.Periodicity = p
	if !v.Empty() {
		return in, v
	}
	return in, nil
}

func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

type archiveRequest struct {
	Reason string `json:"reason" validate:"required,min=5,max=500"`
}

type paymentRequest struct {
	Mode      string `json:"mode" validate:"max=50"`
	Reference string `json:"reference" validate:"max=100"`
	PaidOn    string `json:"paid_on" validate:"omitempty,datetime=2006-01-02"`
}

type ConventionHandler struct {
	svc      *services.ConventionService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewConventionHandler(svc *services.ConventionService, log zerolog.Logger) *ConventionHandler {
	return &ConventionHandler{svc: svc, validate: validation.New(), log: log}
}

// decode reads and validates a JSON body, writing the error response itself.
func (h *ConventionHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		if v, ok := validation.FromValidator(err); ok {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
			return false
		}
		writeError(w, h.log, err)
		return false
	}
	return true
}

func (h *ConventionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req conventionRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	c, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	sum, err := h.svc.Summary(r.Context(), c.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sum)
}

func (h *ConventionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req conventionRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if _, err := h.svc.Update(r.Context(), id, in); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.respondSummary(w, r, id, http.StatusOK)
}

func (h *ConventionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.respondSummary(w, r, id, http.StatusOK)
}

func (h *ConventionHandler) respondSummary(w http.ResponseWriter, r *http.Request, id uint, status int) {
	sum, err := h.svc.Summary(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, status, sum)
}

func (h *ConventionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive requires an authenticated actor; the reason comes from the body.
func (h *ConventionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req archiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Archive(r.Context(), id, actor, req.Reason); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.respondSummary(w, r, id, http.StatusOK)
}

func (h *ConventionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Restore(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.respondSummary(w, r, id, http.StatusOK)
}

func (h *ConventionHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	status, err := h.svc.RecomputeStatus(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

func (h *ConventionHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.GenerateSchedule(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.respondSummary(w, r, id, http.StatusOK)
}

// List accepts ?status=A,B (or repeated status params) and ?archived=true|false.
func (h *ConventionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f services.ConventionFilter
	v := validation.Violations{}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			st := models.ConventionStatus(strings.ToUpper(strings.TrimSpace(part)))
			if st == "" {
				continue
			}
			if !st.Valid() {
				v["status"] = "invalid_value"
				continue
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := q.Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			v["archived"] = "invalid_value"
		} else {
			f.Archived = &archived
		}
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}
	list, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, list)
}

func (h *ConventionHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	invoices, err := h.svc.Invoices(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, invoices)
}

func (h *ConventionHandler) ListOverdueInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.svc.ListOverdueInvoices(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, invoices)
}

func (h *ConventionHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListArchived(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, list)
}

// ListExpiring accepts ?days=N; without it the configured window applies.
func (h *ConventionHandler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if q := r.URL.Query().Get("days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Violations{"days": "invalid_value"})
			return
		}
		days = n
	}
	list, err := h.svc.ListExpiring(r.Context(), days)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeList(w, list)
}

// writeList answers [] rather than null for empty results.
func writeList[T any](w http.ResponseWriter, list []T) {
	if list == nil {
		list = []T{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *ConventionHandler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.svc.RegisterPayment(r.Context(), id, services.PaymentInput{
		Mode:      req.Mode,
		Reference: req.Reference,
		PaidOn:    optionalDate(req.PaidOn),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *ConventionHandler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
