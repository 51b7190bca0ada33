package realtime

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SupportDesk pairs every visitor with a private, history-keeping room that
// all staff can read and answer from the shared StaffRoom.
type SupportDesk struct {
	rooms *Registry
	staff *Room
	now   func() time.Time
}

// NewSupportDesk returns a desk backed by rooms
func NewSupportDesk(rooms *Registry, now func() time.Time) *SupportDesk {
	if now == nil {
		now = time.Now
	}
	return &SupportDesk{
		rooms: rooms,
		staff: rooms.EnsureRoom(StaffRoom),
		now:   now,
	}
}

// StaffReply is the payload an admin sends to answer a visitor
type StaffReply struct {
	TargetRoom string `json:"targetRoom"`
	Text       string `json:"text"`
}

// AdmitVisitor joins the visitor's own room, replays its history and tells
// staff about the conversation when there is anything to show.
func (d *SupportDesk) AdmitVisitor(adm *Admission) {
	d.rooms.Admit(adm.Conn, adm.Room, func(rm *Room, history []Message) {
		for _, msg := range history {
			adm.Conn.Emit(EventChatMessage, msg)
		}
		if len(history) == 0 {
			return
		}
		d.staff.Send(EventNewActivity, Activity{
			RoomID:  rm.Name(),
			Message: history[len(history)-1],
		})
	})
	zap.S().Infow("support visitor connected", "nick", adm.DisplayName, "room", adm.Room)
}

// AdmitStaff joins the staff room and hands the admin the open conversations
func (d *SupportDesk) AdmitStaff(adm *Admission) {
	d.rooms.Admit(adm.Conn, StaffRoom, nil)
	adm.Conn.Emit(EventRoomList, d.VisitorRooms())
	zap.S().Infow("support staff connected", "admin", adm.DisplayName)
}

// VisitorRooms lists every known visitor room, the staff room excluded
func (d *SupportDesk) VisitorRooms() []string {
	names := d.rooms.RoomNames()
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name != StaffRoom {
			out = append(out, name)
		}
	}
	return out
}

// VisitorMessage stores a visitor line in its room, echoes it to the room and
// forwards it to staff.
func (d *SupportDesk) VisitorMessage(adm *Admission, text string) Message {
	msg := Message{
		User: adm.DisplayName,
		Role: adm.Role,
		Text: text,
		At:   millis(d.now()),
	}
	d.publish(adm.Room, msg, func(stored Message) {
		d.staff.Send(EventNewMessage, Activity{RoomID: adm.Room, Message: stored})
	})
	return msg
}

// StaffMessage stores an admin reply in the target room and delivers it to
// that room only. The target room is created when it does not exist yet.
func (d *SupportDesk) StaffMessage(adm *Admission, reply StaffReply) (Message, error) {
	target := strings.TrimSpace(reply.TargetRoom)
	if target == "" {
		return Message{}, fmt.Errorf("targetRoom is required: %w", ErrMalformedPayload)
	}
	if target == StaffRoom {
		return Message{}, fmt.Errorf("cannot reply into %q: %w", StaffRoom, ErrMalformedPayload)
	}

	msg := Message{
		User: StaffLabel,
		Role: RoleAdmin,
		Text: reply.Text,
		At:   millis(d.now()),
	}
	d.publish(target, msg, nil)
	zap.S().Debugw("staff reply", "admin", adm.DisplayName, "room", target)
	return msg, nil
}

func (d *SupportDesk) publish(room string, msg Message, after func(Message)) {
	for !d.rooms.EnsureRoom(room).Publish(EventChatMessage, msg, d.now(), after) {
		// evicted between lookup and publish, the next EnsureRoom recreates it
	}
}

// Leave drops the connection from its room; the room and history stay
func (d *SupportDesk) Leave(adm *Admission) {
	d.rooms.Remove(adm.Conn)
	zap.S().Infow("support connection closed", "nick", adm.DisplayName, "room", adm.Room)
}

// History returns the stored conversation of a room
func (d *SupportDesk) History(room string) []Message {
	rm, ok := d.rooms.Lookup(room)
	if !ok {
		return []Message{}
	}
	return rm.History()
}

// Sweep evicts idle visitor rooms; the staff room is always kept
func (d *SupportDesk) Sweep(idle time.Duration) []string {
	return d.rooms.Evict(idle, StaffRoom)
}
