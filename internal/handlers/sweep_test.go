package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/conventions/auth"
	"github.com/diewo77/conventions/internal/services"
	"github.com/rs/zerolog"
)

type stubSweeper struct {
	ran []services.SweepName
	err error
}

func (s *stubSweeper) Run(ctx context.Context, name services.SweepName) (*services.SweepReport, error) {
	s.ran = append(s.ran, name)
	if s.err != nil {
		return nil, s.err
	}
	return &services.SweepReport{Sweep: name, RunID: "r1", Examined: 2, Changed: 1}, nil
}

func (s *stubSweeper) RunAll(ctx context.Context) ([]*services.SweepReport, error) {
	var out []*services.SweepReport
	for _, name := range services.Sweeps {
		r, err := s.Run(ctx, name)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

func TestSweepHandler(t *testing.T) {
	stub := &stubSweeper{}
	h := NewSweepHandler(stub, zerolog.Nop())

	rec := do(h.Run, http.MethodPost, "/admin/sweeps/completions", "", map[string]string{"name": "completions"}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"changed":1`) {
		t.Errorf("completions: status = %d body = %s", rec.Code, rec.Body.String())
	}

	stub.ran = nil
	rec = do(h.Run, http.MethodPost, "/admin/sweeps/all", "", map[string]string{"name": "all"}, nil)
	if rec.Code != http.StatusOK || len(stub.ran) != len(services.Sweeps) {
		t.Errorf("all: status = %d ran = %v", rec.Code, stub.ran)
	}

	rec = do(h.Run, http.MethodPost, "/admin/sweeps/weekly", "", map[string]string{"name": "weekly"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown sweep status = %d, want 404", rec.Code)
	}

	stub.err = errors.New("db down")
	rec = do(h.Run, http.MethodPost, "/admin/sweeps/comprehensive", "", map[string]string{"name": "comprehensive"}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("failing sweep status = %d, want 500", rec.Code)
	}
}

func TestSessionHandler(t *testing.T) {
	signer := auth.NewSigner("test-secret", time.Hour)
	h := NewSessionHandler(signer)
	rec := do(h.Whoami, http.MethodGet, "/session", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous whoami status = %d, want 401", rec.Code)
	}
	rec = do(h.Whoami, http.MethodGet, "/session", "", nil, auth.WithActor(context.Background(), "ops"))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"actor":"ops"`) {
		t.Errorf("whoami: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = do(h.Login, http.MethodPost, "/session", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous login status = %d, want 401", rec.Code)
	}
	rec = do(h.Login, http.MethodPost, "/session", "", nil, auth.WithActor(context.Background(), "ops"))
	cookies := rec.Result().Cookies()
	if rec.Code != http.StatusOK || len(cookies) != 1 || cookies[0].Name != auth.CookieName {
		t.Fatalf("login: status = %d cookies = %v", rec.Code, cookies)
	}
	if actor, err := signer.Verify(cookies[0].Value); err != nil || actor != "ops" {
		t.Errorf("login cookie = %q, %v; want actor ops", actor, err)
	}

	rec = do(h.Logout, http.MethodPost, "/logout", "", nil, nil)
	if rec.Code != http.StatusNoContent || len(rec.Result().Cookies()) != 1 {
		t.Errorf("logout: status = %d cookies = %v", rec.Code, rec.Result().Cookies())
	}
}
