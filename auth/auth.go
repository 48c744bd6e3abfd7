// Package auth signs and verifies operator sessions and carries the acting
// operator through request contexts.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/conventions/httpx"
)

type ctxKey string

const (
	// CookieName is the session cookie set by CreateSession.
	CookieName = "session"
	// HeaderScheme prefixes the session value in an Authorization header.
	HeaderScheme = "Session"

	actorCtxKey = ctxKey("actor")

	// DefaultTTL is the lifetime of a minted session.
	DefaultTTL = 14 * 24 * time.Hour
)

var (
	ErrMalformedSession = errors.New("malformed_session")
	ErrBadSignature     = errors.New("bad_signature")
	ErrSessionExpired   = errors.New("session_expired")
)

// Signer mints and verifies session values of the form
// base64(actor).expiry.signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer using secret. ttl <= 0 means DefaultTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Signer) mac(payload string) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// Sign returns a session value for actor.
func (s *Signer) Sign(actor string) string {
	exp := strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
	payload := base64.RawURLEncoding.EncodeToString([]byte(actor)) + "." + exp
	return payload + "." + s.mac(payload)
}

// Verify checks a session value and returns its actor.
func (s *Signer) Verify(value string) (string, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return "", ErrMalformedSession
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.mac(payload))) {
		return "", ErrBadSignature
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrMalformedSession
	}
	if s.now().Unix() >= exp {
		return "", ErrSessionExpired
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(raw) == 0 {
		return "", ErrMalformedSession
	}
	return string(raw), nil
}

// CreateSession sets a signed session cookie for actor.
func (s *Signer) CreateSession(w http.ResponseWriter, actor string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Sign(actor),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.now().Add(s.ttl),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession reads the session from the Authorization header or the cookie.
func (s *Signer) ParseSession(r *http.Request) (string, bool) {
	value := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, HeaderScheme+" ") {
		value = strings.TrimSpace(strings.TrimPrefix(h, HeaderScheme+" "))
	} else if c, err := r.Cookie(CookieName); err == nil {
		value = c.Value
	}
	if value == "" {
		return "", false
	}
	actor, err := s.Verify(value)
	if err != nil {
		return "", false
	}
	return actor, true
}

// WithActor stores the acting operator in ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext extracts the acting operator.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorCtxKey).(string)
	return actor, ok && actor != ""
}

// Middleware attaches the actor to the request context when a valid session is present.
func (s *Signer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, ok := s.ParseSession(r); ok {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor answers 401 JSON unless Middleware attached an actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
