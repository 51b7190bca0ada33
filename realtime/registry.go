package realtime

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Room is a named set of connections plus, for support rooms, their history
type Room struct {
	name string

	mu         sync.Mutex
	members    map[string]Conn
	history    []Message
	lastActive time.Time
	evicted    bool
}

func newRoom(name string, now time.Time) *Room {
	return &Room{
		name:       name,
		members:    make(map[string]Conn),
		lastActive: now,
	}
}

// Name returns the room name
func (rm *Room) Name() string {
	return rm.name
}

// Send emits an event to every current member and returns how many received it
func (rm *Room) Send(event string, v interface{}) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.sendLocked(event, v)
}

func (rm *Room) sendLocked(event string, v interface{}) int {
	for _, c := range rm.members {
		c.Emit(event, v)
	}
	return len(rm.members)
}

// Publish appends msg to the history and emits it to every member in one step.
// after, when non-nil, runs before the room is released. It reports false if
// the room was evicted and the message was not stored.
func (rm *Room) Publish(event string, msg Message, now time.Time, after func(Message)) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.evicted {
		return false
	}
	rm.history = append(rm.history, msg)
	rm.lastActive = now
	rm.sendLocked(event, msg)
	if after != nil {
		after(msg)
	}
	return true
}

// History returns a copy of the stored messages in acceptance order
func (rm *Room) History() []Message {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make([]Message, len(rm.history))
	copy(out, rm.history)
	return out
}

// Members returns the ids of the current members, sorted
func (rm *Room) Members() []string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.memberIDsLocked()
}

func (rm *Room) memberIDsLocked() []string {
	ids := make([]string, 0, len(rm.members))
	for id := range rm.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Registry holds the live rooms of one namespace
type Registry struct {
	namespace Namespace
	now       func() time.Time

	mu       sync.RWMutex
	rooms    map[string]*Room
	assigned map[string]string // conn id -> room name
}

// NewRegistry creates an empty registry for a namespace
func NewRegistry(ns Namespace, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		namespace: ns,
		now:       now,
		rooms:     make(map[string]*Room),
		assigned:  make(map[string]string),
	}
}

// EnsureRoom returns the named room, creating it on first reference
func (r *Registry) EnsureRoom(name string) *Room {
	r.mu.RLock()
	rm, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[name]; ok {
		return rm
	}
	rm = newRoom(name, r.now())
	r.rooms[name] = rm
	zap.S().Debugw("room created", "namespace", r.namespace, "room", name)
	return rm
}

// Lookup returns the named room without creating it
func (r *Registry) Lookup(name string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[name]
	return rm, ok
}

// Admit moves conn into the named room, leaving any room it held before.
// onJoin runs while the room is locked, right after conn became a member.
func (r *Registry) Admit(conn Conn, name string, onJoin func(rm *Room, history []Message)) *Room {
	for {
		rm := r.EnsureRoom(name)

		r.mu.Lock()
		prev, hadPrev := r.assigned[conn.ID()]
		r.assigned[conn.ID()] = name
		var prevRoom *Room
		if hadPrev && prev != name {
			prevRoom = r.rooms[prev]
		}
		r.mu.Unlock()

		if prevRoom != nil {
			prevRoom.mu.Lock()
			delete(prevRoom.members, conn.ID())
			prevRoom.mu.Unlock()
		}

		rm.mu.Lock()
		if rm.evicted {
			// lost a race with Evict; the registry already forgot this room
			rm.mu.Unlock()
			continue
		}
		rm.members[conn.ID()] = conn
		rm.lastActive = r.now()
		if onJoin != nil {
			onJoin(rm, rm.history)
		}
		rm.mu.Unlock()
		return rm
	}
}

// Remove drops conn from whatever room it holds and reports that room's name
func (r *Registry) Remove(conn Conn) (string, bool) {
	r.mu.Lock()
	name, ok := r.assigned[conn.ID()]
	delete(r.assigned, conn.ID())
	rm := r.rooms[name]
	r.mu.Unlock()
	if !ok {
		return "", false
	}

	if rm != nil {
		rm.mu.Lock()
		delete(rm.members, conn.ID())
		rm.lastActive = r.now()
		rm.mu.Unlock()
	}
	return name, true
}

// RoomOf reports the room conn currently holds
func (r *Registry) RoomOf(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.assigned[conn.ID()]
	return name, ok
}

// Broadcast emits an event to every member of the named room.
// A missing room has no members, so nothing is created.
func (r *Registry) Broadcast(name, event string, v interface{}) int {
	rm, ok := r.Lookup(name)
	if !ok {
		return 0
	}
	return rm.Send(event, v)
}

// Members returns the connection ids admitted to the named room
func (r *Registry) Members(name string) []string {
	rm, ok := r.Lookup(name)
	if !ok {
		return []string{}
	}
	return rm.Members()
}

// RoomNames returns every known room name, sorted
func (r *Registry) RoomNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evict forgets rooms that have no members and saw no activity for idle.
// Rooms named in keep are never evicted.
func (r *Registry) Evict(idle time.Duration, keep ...string) []string {
	if idle <= 0 {
		return nil
	}
	cutoff := r.now().Add(-idle)
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for name, rm := range r.rooms {
		if kept[name] {
			continue
		}
		rm.mu.Lock()
		if len(rm.members) == 0 && rm.lastActive.Before(cutoff) {
			rm.evicted = true
			delete(r.rooms, name)
			evicted = append(evicted, name)
		}
		rm.mu.Unlock()
	}
	sort.Strings(evicted)
	if len(evicted) > 0 {
		zap.S().Infow("evicted idle rooms", "namespace", r.namespace, "rooms", evicted)
	}
	return evicted
}
