package testhelpers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linesmerrill/member-portal/api"
	"github.com/linesmerrill/member-portal/realtime"
)

// NewSessionStore returns a store that is torn down with the test
func NewSessionStore(t *testing.T) *api.SessionStore {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return api.NewSessionStore(ctx, time.Hour)
}

// LoggedInRequest builds a request for a freshly created session of identity.
// The session cookie is set and the session snapshot is on the context, as
// if the request had passed through SessionMiddleware.
func LoggedInRequest(t *testing.T, store *api.SessionStore, identity realtime.Identity, department, method, target string, body io.Reader) *http.Request {
	t.Helper()
	sid, err := store.Create(identity)
	if err != nil {
		t.Fatal(err)
	}
	if department != "" {
		store.SetDepartment(sid, department)
	}
	sess, _ := store.ResolveSession(sid)

	req := httptest.NewRequest(method, target, body)
	req.AddCookie(store.Cookie(sid))
	return req.WithContext(api.WithSession(req.Context(), api.RequestSession{Ref: sid, Session: sess}))
}
