package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/conventions/auth"
	"github.com/diewo77/conventions/internal/clock"
	"github.com/diewo77/conventions/internal/models"
	"github.com/diewo77/conventions/internal/services"
	"github.com/diewo77/conventions/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.Convention{}, &models.Invoice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newHandler(t *testing.T, today time.Time) *ConventionHandler {
	t.Helper()
	st := store.New(setupTestDB(t))
	svc := services.NewConventionService(st, clock.Fixed(today))
	return NewConventionHandler(svc, zerolog.Nop())
}

const createBody = `{
	"reference": "CONV-2024-001",
	"erp_reference": "ERP-0001",
	"label": "Water supply",
	"start_date": "2024-01-01",
	"end_date": "2024-12-31",
	"total_amount": "1200.00",
	"periodicity": "MONTHLY"
}`

type summaryBody struct {
	Convention struct {
		ID       uint   `json:"id"`
		Status   string `json:"status"`
		Archived bool   `json:"archived"`
		Invoices []struct {
			ID            uint   `json:"id"`
			Number        string `json:"number"`
			PaymentStatus string `json:"payment_status"`
		} `json:"invoices"`
	} `json:"convention"`
	InvoiceCount int `json:"invoice_count"`
	PaidCount    int `json:"paid_count"`
}

func do(h http.HandlerFunc, method, target, body string, pathValues map[string]string, ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeSummary(t *testing.T, rec *httptest.ResponseRecorder) summaryBody {
	t.Helper()
	var s summaryBody
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return s
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %s: %v", rec.Body.String(), err)
	}
	return e.Error
}

func TestCreateConvention(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 1, 10))
	rec := do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	s := decodeSummary(t, rec)
	if s.InvoiceCount != 12 {
		t.Errorf("invoice_count = %d, want 12", s.InvoiceCount)
	}
	if s.Convention.Status != string(models.StatusInProgress) {
		t.Errorf("status = %s, want IN_PROGRESS", s.Convention.Status)
	}

	rec = do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "duplicate_reference" {
		t.Errorf("duplicate: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateConventionValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		code  string
	}{
		{"bad reference", strings.Replace(createBody, "CONV-2024-001", "C-1", 1), "reference", "invalid_reference"},
		{"missing label", strings.Replace(createBody, `"Water supply"`, `""`, 1), "label", "required"},
		{"bad date", strings.Replace(createBody, "2024-01-01", "01/01/2024", 1), "start_date", "invalid"},
		{"end before start", strings.Replace(createBody, "2024-12-31", "2023-12-31", 1), "end_date", "must_be_after_start"},
		{"negative amount", strings.Replace(createBody, `"1200.00"`, `"-5"`, 1), "total_amount", "must_not_be_negative"},
		{"bad periodicity", strings.Replace(createBody, "MONTHLY", "WEEKLY", 1), "periodicity", "invalid_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t, clock.Date(2024, 1, 10))
			rec := do(h.Create, http.MethodPost, "/conventions", tt.body, nil, nil)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
			}
			var body struct {
				Details map[string]string `json:"details"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Details[tt.field] != tt.code {
				t.Errorf("details[%s] = %q, want %q (%v)", tt.field, body.Details[tt.field], tt.code, body.Details)
			}
		})
	}
}

func TestCreateConventionBadJSON(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 1, 10))
	rec := do(h.Create, http.MethodPost, "/conventions", `{"reference":`, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetConvention(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 1, 10))
	do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil)

	rec := do(h.Get, http.MethodGet, "/conventions/1", "", map[string]string{"id": "1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if s := decodeSummary(t, rec); s.Convention.ID != 1 {
		t.Errorf("id = %d, want 1", s.Convention.ID)
	}

	rec = do(h.Get, http.MethodGet, "/conventions/99", "", map[string]string{"id": "99"}, nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Errorf("missing: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = do(h.Get, http.MethodGet, "/conventions/abc", "", map[string]string{"id": "abc"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestArchiveFlow(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 1, 10))
	created := decodeSummary(t, do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil))
	id := map[string]string{"id": "1"}
	ops := auth.WithActor(context.Background(), "ops@example.com")

	rec := do(h.Archive, http.MethodPost, "/conventions/1/archive", `{"reason":"contract ended"}`, id, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous archive status = %d, want 401", rec.Code)
	}

	rec = do(h.Archive, http.MethodPost, "/conventions/1/archive", `{"reason":"ok"}`, id, ops)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short reason status = %d, want 422", rec.Code)
	}

	rec = do(h.Archive, http.MethodPost, "/conventions/1/archive", `{"reason":"contract ended"}`, id, ops)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "unpaid_invoices" {
		t.Fatalf("unpaid archive: status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "FACT-2024-CONV-2024-001-001") {
		t.Errorf("unpaid details missing invoice numbers: %s", rec.Body.String())
	}

	for _, inv := range created.Convention.Invoices {
		rec := do(h.RegisterPayment, http.MethodPost, "/invoices/x/pay", `{"mode":"TRANSFER"}`,
			map[string]string{"id": fmt.Sprint(inv.ID)}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("pay %d: status = %d body = %s", inv.ID, rec.Code, rec.Body.String())
		}
	}

	rec = do(h.Archive, http.MethodPost, "/conventions/1/archive", `{"reason":"contract ended"}`, id, ops)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d body = %s", rec.Code, rec.Body.String())
	}
	if s := decodeSummary(t, rec); s.Convention.Status != string(models.StatusArchived) || !s.Convention.Archived {
		t.Errorf("archived convention = %+v", s.Convention)
	}

	rec = do(h.Delete, http.MethodDelete, "/conventions/1", "", id, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("delete archived status = %d, want 409", rec.Code)
	}

	rec = do(h.Restore, http.MethodPost, "/conventions/1/restore", "", id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d body = %s", rec.Code, rec.Body.String())
	}
	if s := decodeSummary(t, rec); s.Convention.Status != string(models.StatusCompleted) {
		t.Errorf("restored status = %s, want COMPLETED", s.Convention.Status)
	}
	rec = do(h.Restore, http.MethodPost, "/conventions/1/restore", "", id, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "not_archived" {
		t.Errorf("second restore: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestPaymentAndInvoiceDeletion(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 1, 10))
	created := decodeSummary(t, do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil))
	first := map[string]string{"id": fmt.Sprint(created.Convention.Invoices[0].ID)}

	rec := do(h.RegisterPayment, http.MethodPost, "/invoices/1/pay", `{"mode":"CHEQUE","paid_on":"2024-01-05"}`, first, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay status = %d body = %s", rec.Code, rec.Body.String())
	}
	var inv struct {
		PaymentStatus string `json:"payment_status"`
		PaymentMode   string `json:"payment_mode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.PaymentStatus != "PAID" || inv.PaymentMode != "CHEQUE" {
		t.Errorf("invoice = %+v", inv)
	}

	rec = do(h.RegisterPayment, http.MethodPost, "/invoices/1/pay", `{}`, first, nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "invoice_already_paid" {
		t.Errorf("double pay: status = %d body = %s", rec.Code, rec.Body.String())
	}

	second := map[string]string{"id": fmt.Sprint(created.Convention.Invoices[1].ID)}
	rec = do(h.DeleteInvoice, http.MethodDelete, "/invoices/2", "", second, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete invoice status = %d body = %s", rec.Code, rec.Body.String())
	}
	s := decodeSummary(t, do(h.Get, http.MethodGet, "/conventions/1", "", map[string]string{"id": "1"}, nil))
	if s.InvoiceCount != 11 || s.PaidCount != 1 {
		t.Errorf("after delete: invoices = %d paid = %d, want 11 and 1", s.InvoiceCount, s.PaidCount)
	}
}

func TestGenerateScheduleMissingInput(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 1, 10))
	body := strings.Replace(createBody, `"periodicity": "MONTHLY"`, `"periodicity": ""`, 1)
	created := decodeSummary(t, do(h.Create, http.MethodPost, "/conventions", body, nil, nil))
	if created.InvoiceCount != 0 {
		t.Fatalf("invoice_count = %d, want 0", created.InvoiceCount)
	}
	rec := do(h.GenerateSchedule, http.MethodPost, "/conventions/1/invoices/generate", "", map[string]string{"id": "1"}, nil)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "missing_schedule_input" {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestRecomputeAndLists(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 12, 10))
	do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil)

	rec := do(h.Recompute, http.MethodPost, "/conventions/1/recompute", "", map[string]string{"id": "1"}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"OVERDUE"`) {
		t.Errorf("recompute: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = do(h.ListExpiring, http.MethodGet, "/conventions/expiring?days=30", "", nil, nil)
	var list []struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Reference != "CONV-2024-001" {
		t.Errorf("expiring = %+v", list)
	}

	rec = do(h.ListExpiring, http.MethodGet, "/conventions/expiring?days=-3", "", nil, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative days status = %d, want 422", rec.Code)
	}

	rec = do(h.ListArchived, http.MethodGet, "/conventions/archived", "", nil, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("archived: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateInvoicedConvention(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 1, 10))
	do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil)
	id := map[string]string{"id": "1"}

	relabel := strings.Replace(createBody, "Water supply", "Water and sewage", 1)
	rec := do(h.Update, http.MethodPut, "/conventions/1", relabel, id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("relabel: status = %d body = %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name string
		body string
	}{
		{"total", strings.Replace(createBody, `"1200.00"`, `"5000"`, 1)},
		{"periodicity", strings.Replace(createBody, "MONTHLY", "ANNUAL", 1)},
		{"reference", strings.Replace(createBody, "CONV-2024-001", "CONV-2024-009", 1)},
	}
	for _, tt := range tests {
		rec := do(h.Update, http.MethodPut, "/conventions/1", tt.body, id, nil)
		if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "invalid_input" {
			t.Errorf("%s: status = %d body = %s", tt.name, rec.Code, rec.Body.String())
		}
	}
}

func TestListEndpoints(t *testing.T) {
	h := newHandler(t, clock.Date(2024, 3, 15))
	do(h.Create, http.MethodPost, "/conventions", createBody, nil, nil)
	next := strings.NewReplacer(
		"CONV-2024-001", "CONV-2025-001",
		"ERP-0001", "ERP-0002",
		"2024-01-01", "2025-01-01",
		"2024-12-31", "2025-12-31",
	).Replace(createBody)
	if rec := do(h.Create, http.MethodPost, "/conventions", next, nil, nil); rec.Code != http.StatusCreated {
		t.Fatalf("create second: status = %d body = %s", rec.Code, rec.Body.String())
	}

	references := func(rec *httptest.ResponseRecorder) []string {
		t.Helper()
		var list []struct {
			Reference string `json:"reference"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
		var refs []string
		for _, c := range list {
			refs = append(refs, c.Reference)
		}
		return refs
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"CONV-2024-001", "CONV-2025-001"}},
		{"?status=OVERDUE", []string{"CONV-2024-001"}},
		{"?status=awaiting", []string{"CONV-2025-001"}},
		{"?status=AWAITING,OVERDUE&archived=false", []string{"CONV-2024-001", "CONV-2025-001"}},
		{"?archived=true", nil},
	}
	for _, tt := range tests {
		rec := do(h.List, http.MethodGet, "/conventions"+tt.query, "", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list %q: status = %d body = %s", tt.query, rec.Code, rec.Body.String())
		}
		if got := references(rec); fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("list %q = %v, want %v", tt.query, got, tt.want)
		}
	}

	for _, q := range []string{"?status=CLOSED", "?archived=maybe"} {
		rec := do(h.List, http.MethodGet, "/conventions"+q, "", nil, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("list %q: status = %d, want 422", q, rec.Code)
		}
	}

	// February and March invoices are past due on March 15.
	rec := do(h.ListOverdueInvoices, http.MethodGet, "/invoices/overdue", "", nil, nil)
	var overdue []struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &overdue); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(overdue) != 2 || overdue[0].Number != "FACT-2024-CONV-2024-001-001" {
		t.Errorf("overdue = %+v", overdue)
	}

	rec = do(h.ListInvoices, http.MethodGet, "/conventions/1/invoices", "", map[string]string{"id": "1"}, nil)
	var invoices []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &invoices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || len(invoices) != 12 {
		t.Errorf("invoices: status = %d count = %d", rec.Code, len(invoices))
	}
	rec = do(h.ListInvoices, http.MethodGet, "/conventions/99/invoices", "", map[string]string{"id": "99"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing convention invoices: status = %d, want 404", rec.Code)
	}
}

func TestWriteErrorUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zerolog.Nop(), errors.New("connection reset"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("internal error message leaked to the client")
	}
}
