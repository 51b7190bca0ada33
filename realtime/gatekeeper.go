package realtime

import (
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"
)

var guestNamePattern = regexp.MustCompile(`^Guest[0-9]{4}$`)

// ReservedID reports whether a member id would land in a support room the
// desk names itself, the staff room or a guest room
func ReservedID(id string) bool {
	return id == StaffRoom || guestNamePattern.MatchString(id)
}

// Gatekeeper validates a handshake before the connection reaches any room
type Gatekeeper struct {
	sessions  SessionResolver
	guestName func() string
	now       func() time.Time
}

// NewGatekeeper returns a gatekeeper reading sessions from the resolver
func NewGatekeeper(sessions SessionResolver, now func() time.Time) *Gatekeeper {
	if now == nil {
		now = time.Now
	}
	return &Gatekeeper{
		sessions:  sessions,
		guestName: newGuestNamer(now().UnixNano()),
		now:       now,
	}
}

// newGuestNamer returns a generator of Guest<1000..9999> names
func newGuestNamer(seed int64) func() string {
	var mu sync.Mutex
	rnd := rand.New(rand.NewSource(seed))
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Sprintf("Guest%d", rnd.Intn(9000)+1000)
	}
}

// Admit checks the handshake against the session it references.
// The returned admission has its room chosen but is not a member of it yet.
func (g *Gatekeeper) Admit(conn Conn, hs Handshake) (*Admission, error) {
	var sess Session
	if hs.SessionRef != "" {
		sess, _ = g.sessions.ResolveSession(hs.SessionRef)
	}

	switch hs.Namespace {
	case NamespaceMain:
		return g.admitMain(conn, hs, sess)
	case NamespaceSupport:
		return g.admitSupport(conn, sess)
	}
	return nil, fmt.Errorf("namespace %q: %w", hs.Namespace, ErrUnknownRoute)
}

func (g *Gatekeeper) admitMain(conn Conn, hs Handshake, sess Session) (*Admission, error) {
	if sess.Identity == nil {
		return nil, fmt.Errorf("login required: %w", ErrUnauthenticated)
	}
	// the department must have been joined over HTTP; the socket only re-checks it
	if hs.Department == "" || sess.CurrentDepartment == "" || sess.CurrentDepartment != hs.Department {
		return nil, fmt.Errorf("department %q not joined: %w", hs.Department, ErrUnauthorized)
	}

	id := snapshot(sess.Identity)
	return &Admission{
		Conn:        conn,
		Namespace:   NamespaceMain,
		Identity:    &id,
		DisplayName: id.ID,
		Role:        id.Role,
		Room:        hs.Department,
		AdmittedAt:  g.now(),
	}, nil
}

func (g *Gatekeeper) admitSupport(conn Conn, sess Session) (*Admission, error) {
	adm := &Admission{
		Conn:       conn,
		Namespace:  NamespaceSupport,
		AdmittedAt: g.now(),
	}

	if sess.Identity == nil {
		adm.DisplayName = g.guestName()
		adm.Role = RoleGuest
		adm.Room = adm.DisplayName
		return adm, nil
	}

	id := snapshot(sess.Identity)
	adm.Identity = &id
	adm.DisplayName = id.ID
	adm.Role = id.Role
	if id.Role == RoleAdmin {
		adm.Room = StaffRoom
		return adm, nil
	}
	if ReservedID(id.ID) {
		return nil, fmt.Errorf("room id %q is reserved: %w", id.ID, ErrUnauthorized)
	}
	adm.Room = id.ID
	return adm, nil
}

// snapshot copies an identity, folding unknown roles into RoleUser
func snapshot(id *Identity) Identity {
	out := *id
	if out.Role != RoleAdmin {
		out.Role = RoleUser
	}
	return out
}
