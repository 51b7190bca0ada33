package realtime

import (
	"time"

	"go.uber.org/zap"
)

// ConnState is the lifecycle of a department chat connection
type ConnState int

const (
	StateConnecting ConnState = iota
	StateValidating
	StateAdmitted
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateValidating:
		return "validating"
	case StateAdmitted:
		return "admitted"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// DepartmentChannel broadcasts chat lines to everyone in a department room.
// Nothing is kept after the broadcast.
type DepartmentChannel struct {
	rooms *Registry
	now   func() time.Time
}

// NewDepartmentChannel returns a channel backed by rooms
func NewDepartmentChannel(rooms *Registry, now func() time.Time) *DepartmentChannel {
	if now == nil {
		now = time.Now
	}
	return &DepartmentChannel{rooms: rooms, now: now}
}

// Join places the admitted connection in its department room
func (d *DepartmentChannel) Join(adm *Admission) {
	d.rooms.Admit(adm.Conn, adm.Room, nil)
	zap.S().Infow("department member joined",
		"user", adm.DisplayName,
		"dept", adm.Room,
	)
}

// Send broadcasts text to the sender's department, sender included
func (d *DepartmentChannel) Send(adm *Admission, text string) Message {
	msg := Message{
		User: adm.Identity.ID,
		Role: adm.Identity.Role,
		Text: text,
		Dept: adm.Room,
		At:   millis(d.now()),
	}
	d.rooms.Broadcast(adm.Room, EventChatMessage, msg)
	return msg
}

// Leave removes the connection from its department room
func (d *DepartmentChannel) Leave(adm *Admission) {
	d.rooms.Remove(adm.Conn)
	zap.S().Infow("department member left",
		"user", adm.DisplayName,
		"dept", adm.Room,
	)
}
