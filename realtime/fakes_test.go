package realtime

import (
	"sync"
	"time"
)

type emitted struct {
	Event string
	Args  []interface{}
}

// recorder is a Conn that remembers everything sent to it
type recorder struct {
	id string

	mu     sync.Mutex
	events []emitted
	closed bool
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Emit(event string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Event: event, Args: v})
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// named returns the first argument of every event with the given name
func (r *recorder) named(event string) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []interface{}
	for _, e := range r.events {
		if e.Event == event && len(e.Args) > 0 {
			out = append(out, e.Args[0])
		}
	}
	return out
}

func (r *recorder) messages() []Message {
	var out []Message
	for _, v := range r.named(EventChatMessage) {
		out = append(out, v.(Message))
	}
	return out
}

func (r *recorder) activities(event string) []Activity {
	var out []Activity
	for _, v := range r.named(event) {
		out = append(out, v.(Activity))
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// sessions is an in-memory SessionResolver keyed by session ref
type sessions map[string]Session

func (s sessions) ResolveSession(ref string) (Session, bool) {
	sess, ok := s[ref]
	return sess, ok
}

// clock is a manually advanced time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func userSession(id string, role Role, team, dept string) Session {
	return Session{
		Identity:          &Identity{ID: id, Role: role, Team: team},
		CurrentDepartment: dept,
	}
}

// stalled is a recorder whose Emit blocks until gate is closed, like a
// polling client that has stopped polling
type stalled struct {
	*recorder
	gate    chan struct{}
	entered chan struct{}
}

func newStalled(id string) *stalled {
	return &stalled{
		recorder: newRecorder(id),
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 1024),
	}
}

func (s *stalled) Emit(event string, v ...interface{}) {
	s.entered <- struct{}{}
	<-s.gate
	s.recorder.Emit(event, v...)
}
