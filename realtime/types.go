package realtime

import (
	"errors"
	"time"
)

// Namespace is an independent messaging context with its own rooms and admission rules
type Namespace string

const (
	// NamespaceMain carries department chat. The socket.io root namespace
	// is joined implicitly by every client, so department chat lives apart from it.
	NamespaceMain Namespace = "/dept"
	// NamespaceSupport carries the support desk
	NamespaceSupport Namespace = "/support"
)

// Role is the closed set of sender roles
type Role string

const (
	// RoleGuest is an anonymous support visitor
	RoleGuest Role = "guest"
	// RoleUser is a signed-up member
	RoleUser Role = "user"
	// RoleAdmin staffs the support desk
	RoleAdmin Role = "admin"
)

// Event names shared with the browser client
const (
	EventChatMessage = "chat message"
	EventError       = "error"
	EventNewMessage  = "new message"
	EventNewActivity = "new-activity"
	EventRoomList    = "room list"
)

const (
	// StaffRoom is the support room shared by every admin
	StaffRoom = "admin"
	// StaffLabel is the display name used for admin-authored support messages
	StaffLabel = "관리자"
)

var (
	// ErrUnauthenticated is returned when a namespace requires an identity and none was resolved
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized is returned when the requested department does not match the joined one
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedPayload is returned for events that cannot be turned into a message
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnknownRoute is returned when no behavior exists for a (namespace, role) pair
	ErrUnknownRoute = errors.New("unknown route")
	// ErrNotAdmitted is returned for events from a connection that was never admitted
	ErrNotAdmitted = errors.New("connection not admitted")
)

// Identity is the snapshot of a user record taken at handshake time
type Identity struct {
	ID   string `json:"ID"`
	Role Role   `json:"role"`
	Team string `json:"team"`
}

// Session is the part of HTTP session state the messaging core reads
type Session struct {
	Identity          *Identity
	CurrentDepartment string
}

// SessionResolver maps an opaque session reference to a session snapshot
type SessionResolver interface {
	ResolveSession(ref string) (Session, bool)
}

// Conn is a live bidirectional connection. socketio.Conn satisfies it.
type Conn interface {
	ID() string
	Emit(event string, v ...interface{})
	Close() error
}

// Observer receives a notification for every event the hub handles
type Observer interface {
	ObserveEvent(namespace, event string)
}

// Message is a single chat line
type Message struct {
	User string `json:"user"`
	Role Role   `json:"role"`
	Text string `json:"text"`
	Dept string `json:"dept,omitempty"`
	At   int64  `json:"at"`
}

// Activity tells staff which support room changed
type Activity struct {
	RoomID  string  `json:"roomId"`
	Message Message `json:"message"`
}

// Handshake is what a connection attempt presents
type Handshake struct {
	Namespace  Namespace
	SessionRef string
	Department string
}

// Admission is an admitted connection and where it was placed
type Admission struct {
	Conn        Conn
	Namespace   Namespace
	Identity    *Identity
	DisplayName string
	Role        Role
	Room        string
	AdmittedAt  time.Time
}

func millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
