package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// route selects a behavior by namespace and sender role
type route struct {
	ns   Namespace
	role Role
}

// behavior is what a connection on one route does when it joins, talks and leaves
type behavior interface {
	join(adm *Admission)
	receive(adm *Admission, payload json.RawMessage) error
	leave(adm *Admission)
}

// Hub wires the gatekeeper, both namespaces and the dispatch table together
type Hub struct {
	gate        *Gatekeeper
	departments *DepartmentChannel
	desk        *SupportDesk
	observer    Observer
	now         func() time.Time
	sendBuffer  int
	closeGrace  time.Duration

	routes map[route]behavior

	mu      sync.RWMutex
	clients map[string]*client // namespace + conn id -> admitted client
	states  map[string]ConnState
}

// client is an admitted connection together with its outbound queue
type client struct {
	adm *Admission
	out *outbox
}

// Option configures a Hub
type Option func(*Hub)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithGuestNamer replaces the random Guest<NNNN> generator
func WithGuestNamer(fn func() string) Option {
	return func(h *Hub) { h.gate.guestName = fn }
}

// WithObserver reports every handled event to o
func WithObserver(o Observer) Option {
	return func(h *Hub) { h.observer = o }
}

// WithSendBuffer sets how many events may queue per connection
func WithSendBuffer(n int) Option {
	return func(h *Hub) { h.sendBuffer = n }
}

// WithCloseGrace sets how long a rejected connection is kept open so its
// error event can reach the client
func WithCloseGrace(d time.Duration) Option {
	return func(h *Hub) { h.closeGrace = d }
}

// NewHub creates a hub that resolves handshakes through sessions
func NewHub(sessions SessionResolver, opts ...Option) *Hub {
	h := &Hub{
		now:        time.Now,
		sendBuffer: DefaultSendBuffer,
		closeGrace: DefaultCloseGrace,
		clients:    make(map[string]*client),
		states:     make(map[string]ConnState),
	}
	h.gate = NewGatekeeper(sessions, func() time.Time { return h.now() })
	for _, opt := range opts {
		opt(h)
	}

	clock := func() time.Time { return h.now() }
	h.departments = NewDepartmentChannel(NewRegistry(NamespaceMain, clock), clock)
	h.desk = NewSupportDesk(NewRegistry(NamespaceSupport, clock), clock)

	member := departmentMember{h.departments}
	h.routes = map[route]behavior{
		{NamespaceMain, RoleUser}:     member,
		{NamespaceMain, RoleAdmin}:    member,
		{NamespaceSupport, RoleGuest}: visitor{h.desk},
		{NamespaceSupport, RoleUser}:  visitor{h.desk},
		{NamespaceSupport, RoleAdmin}: staff{h.desk},
	}
	return h
}

// Departments exposes the department channel
func (h *Hub) Departments() *DepartmentChannel {
	return h.departments
}

// Desk exposes the support desk
func (h *Hub) Desk() *SupportDesk {
	return h.desk
}

func key(ns Namespace, conn Conn) string {
	return string(ns) + "#" + conn.ID()
}

// Accept records a connection the transport has just opened
func (h *Hub) Accept(ns Namespace, conn Conn) {
	h.setState(key(ns, conn), StateConnecting)
}

// Connect validates a handshake and admits the connection into exactly one room.
// On rejection the connection is sent one error event and then closed. Both
// happen on the connection's writer, so Connect never waits on the network.
func (h *Hub) Connect(conn Conn, hs Handshake) error {
	k := key(hs.Namespace, conn)
	h.setState(k, StateValidating)

	out := newOutbox(conn, h.sendBuffer, h.closeGrace)
	adm, err := h.gate.Admit(out, hs)
	var b behavior
	if err == nil {
		var ok bool
		if b, ok = h.routes[route{adm.Namespace, adm.Role}]; !ok {
			err = fmt.Errorf("no behavior for %s/%s: %w", adm.Namespace, adm.Role, ErrUnknownRoute)
		}
	}
	if err != nil {
		h.reject(out, hs.Namespace, err)
		return err
	}

	h.mu.Lock()
	h.clients[k] = &client{adm: adm, out: out}
	h.states[k] = StateAdmitted
	h.mu.Unlock()

	b.join(adm)
	h.observe(hs.Namespace, "connect")
	return nil
}

func (h *Hub) reject(out *outbox, ns Namespace, err error) {
	shared := h.sharesTransport(ns, out.ID())

	h.mu.Lock()
	delete(h.states, string(ns)+"#"+out.ID())
	h.mu.Unlock()

	zap.S().Warnw("connection rejected",
		"namespace", ns,
		"conn", out.ID(),
		"error", err,
	)
	out.Emit(EventError, diagnostic(err))
	if shared {
		// closing the transport would also end the sibling namespace
		out.release()
	} else {
		_ = out.Close()
	}
	h.observe(ns, "reject")
}

// sharesTransport reports whether a connection with the same transport id is
// admitted on another namespace
func (h *Hub) sharesTransport(ns Namespace, id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.adm.Namespace != ns && c.out.ID() == id {
			return true
		}
	}
	return false
}

func diagnostic(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "로그인이 필요합니다."
	case errors.Is(err, ErrUnauthorized):
		return "부서 입장 인증이 필요합니다."
	case errors.Is(err, ErrMalformedPayload):
		return "잘못된 메시지 형식입니다."
	}
	return "연결할 수 없습니다."
}

// Message handles a chat message event from an admitted connection
func (h *Hub) Message(ns Namespace, conn Conn, payload json.RawMessage) error {
	c, ok := h.client(ns, conn)
	if !ok {
		return ErrNotAdmitted
	}
	adm := c.adm
	b := h.routes[route{adm.Namespace, adm.Role}]
	if err := b.receive(adm, payload); err != nil {
		zap.S().Warnw("message rejected",
			"namespace", ns,
			"user", adm.DisplayName,
			"error", err,
		)
		c.out.Emit(EventError, diagnostic(err))
		return err
	}
	h.observe(ns, EventChatMessage)
	return nil
}

// Disconnect removes the connection from its room. Rooms are left in place.
func (h *Hub) Disconnect(ns Namespace, conn Conn) {
	k := key(ns, conn)
	h.mu.Lock()
	c, ok := h.clients[k]
	delete(h.clients, k)
	delete(h.states, k)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.routes[route{c.adm.Namespace, c.adm.Role}].leave(c.adm)
	c.out.release()
	h.observe(ns, "disconnect")
}

// Admission returns the admission of a connected client
func (h *Hub) Admission(ns Namespace, conn Conn) (*Admission, bool) {
	c, ok := h.client(ns, conn)
	if !ok {
		return nil, false
	}
	return c.adm, true
}

func (h *Hub) client(ns Namespace, conn Conn) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[key(ns, conn)]
	return c, ok
}

// State reports where a connection is in its lifecycle
func (h *Hub) State(ns Namespace, conn Conn) ConnState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.states[key(ns, conn)]; ok {
		return s
	}
	return StateClosed
}

func (h *Hub) setState(k string, s ConnState) {
	h.mu.Lock()
	h.states[k] = s
	h.mu.Unlock()
}

// Sweep evicts support rooms idle for longer than retention
func (h *Hub) Sweep(retention time.Duration) []string {
	return h.desk.Sweep(retention)
}

func (h *Hub) observe(ns Namespace, event string) {
	if h.observer != nil {
		h.observer.ObserveEvent(string(ns), event)
	}
}

// decodeText accepts a JSON string, or an object carrying a text field
func decodeText(payload json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(payload, &text); err == nil {
		return text, nil
	}
	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil || obj.Text == nil {
		return "", fmt.Errorf("expected text: %w", ErrMalformedPayload)
	}
	return *obj.Text, nil
}

type departmentMember struct{ ch *DepartmentChannel }

func (m departmentMember) join(adm *Admission)  { m.ch.Join(adm) }
func (m departmentMember) leave(adm *Admission) { m.ch.Leave(adm) }
func (m departmentMember) receive(adm *Admission, payload json.RawMessage) error {
	text, err := decodeText(payload)
	if err != nil {
		return err
	}
	m.ch.Send(adm, text)
	return nil
}

type visitor struct{ desk *SupportDesk }

func (v visitor) join(adm *Admission)  { v.desk.AdmitVisitor(adm) }
func (v visitor) leave(adm *Admission) { v.desk.Leave(adm) }
func (v visitor) receive(adm *Admission, payload json.RawMessage) error {
	text, err := decodeText(payload)
	if err != nil {
		return err
	}
	v.desk.VisitorMessage(adm, text)
	return nil
}

type staff struct{ desk *SupportDesk }

func (s staff) join(adm *Admission)  { s.desk.AdmitStaff(adm) }
func (s staff) leave(adm *Admission) { s.desk.Leave(adm) }
func (s staff) receive(adm *Admission, payload json.RawMessage) error {
	var reply StaffReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return fmt.Errorf("expected {targetRoom, text}: %w", ErrMalformedPayload)
	}
	_, err := s.desk.StaffMessage(adm, reply)
	return err
}
