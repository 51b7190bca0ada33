package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/linesmerrill/member-portal/realtime"
)

// SessionCookie is the name of the cookie carrying the session id
const SessionCookie = "portal.sid"

type sessionContextKey struct{}

type sessionEntry struct {
	mu         sync.Mutex
	identity   realtime.Identity
	department string
}

// SessionStore keeps logged-in sessions in memory, keyed by a random id
// handed to the browser as a cookie. Entries expire after the configured ttl.
type SessionStore struct {
	cache store.Cache
	ttl   time.Duration
}

// NewSessionStore creates a store whose entries live for ttl. The expiry
// goroutine stops when ctx is done.
func NewSessionStore(ctx context.Context, ttl time.Duration) *SessionStore {
	return &SessionStore{
		cache: store.NewFIFO(ctx, ttl),
		ttl:   ttl,
	}
}

// Create starts a session for identity and returns its id
func (s *SessionStore) Create(identity realtime.Identity) (string, error) {
	sid := uuid.New().String()
	if err := s.cache.Store(sid, &sessionEntry{identity: identity}, nil); err != nil {
		return "", err
	}
	return sid, nil
}

// ResolveSession returns a snapshot of the session named by ref
func (s *SessionStore) ResolveSession(ref string) (realtime.Session, bool) {
	e := s.entry(ref)
	if e == nil {
		return realtime.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.identity
	return realtime.Session{Identity: &id, CurrentDepartment: e.department}, true
}

// SetDepartment records the department the session last unlocked
func (s *SessionStore) SetDepartment(ref, department string) bool {
	e := s.entry(ref)
	if e == nil {
		return false
	}
	e.mu.Lock()
	e.department = department
	e.mu.Unlock()
	return true
}

// Destroy forgets the session
func (s *SessionStore) Destroy(ref string) {
	if ref == "" {
		return
	}
	if err := s.cache.Delete(ref, nil); err != nil {
		zap.S().Debugw("failed to delete session", "error", err)
	}
}

func (s *SessionStore) entry(ref string) *sessionEntry {
	if ref == "" {
		return nil
	}
	v, ok, err := s.cache.Load(ref, nil)
	if err != nil || !ok {
		return nil
	}
	e, _ := v.(*sessionEntry)
	return e
}

// Cookie builds the session cookie for sid
func (s *SessionStore) Cookie(sid string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	}
}

// ExpiredCookie clears the session cookie in the browser
func ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	}
}

// SessionRef reads the session id from the request cookies
func SessionRef(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// SessionRefFromHeader reads the session id from raw handshake headers
func SessionRefFromHeader(h http.Header) string {
	return SessionRef(&http.Request{Header: h})
}

// RequestSession is what SessionMiddleware stores on the request context
type RequestSession struct {
	Ref string
	realtime.Session
}

// SessionMiddleware rejects requests without a live session and puts the
// session snapshot on the request context
func (s *SessionStore) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ref := SessionRef(r)
		sess, ok := s.ResolveSession(ref)
		if !ok || sess.Identity == nil {
			zap.S().Debugw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, RequestSession{Ref: ref, Session: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the session placed by SessionMiddleware
func SessionFromContext(ctx context.Context) (RequestSession, bool) {
	rs, ok := ctx.Value(sessionContextKey{}).(RequestSession)
	return rs, ok
}

// WithSession attaches a session to ctx the way SessionMiddleware does
func WithSession(ctx context.Context, rs RequestSession) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, rs)
}
