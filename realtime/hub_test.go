package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newTestHub(s sessions, guests ...string) (*Hub, *clock) {
	c := newClock()
	i := 0
	namer := func() string {
		if i < len(guests) {
			i++
			return guests[i-1]
		}
		i++
		return fmt.Sprintf("Guest%d", 1000+i)
	}
	return NewHub(s, WithClock(c.Now), WithGuestNamer(namer), WithSendBuffer(1024), WithCloseGrace(0)), c
}

// settle waits until every admitted connection has written out its queue
func settle(t *testing.T, h *Hub) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for _, c := range h.clients {
			if !c.out.idle() {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)
}

func waitClosed(t *testing.T, conn *recorder) {
	t.Helper()
	require.Eventually(t, conn.isClosed, time.Second, time.Millisecond)
}

func TestHub_MainRejectsMissingIdentity(t *testing.T) {
	h, _ := newTestHub(sessions{"anon": {}})

	for _, ref := range []string{"", "anon", "unknown"} {
		conn := newRecorder("c-" + ref)
		err := h.Connect(conn, Handshake{Namespace: NamespaceMain, SessionRef: ref, Department: "총무팀"})

		assert.ErrorIs(t, err, ErrUnauthenticated)
		waitClosed(t, conn)
		assert.Len(t, conn.named(EventError), 1)
		assert.Empty(t, h.Departments().rooms.Members("총무팀"))
		assert.Equal(t, StateClosed, h.State(NamespaceMain, conn))
	}
}

func TestHub_MainRejectsDepartmentMismatch(t *testing.T) {
	h, _ := newTestHub(sessions{
		"alice":   userSession("alice", RoleUser, "회계팀", "회계팀"),
		"nojoin":  userSession("bob", RoleUser, "총무팀", ""),
		"admin-x": userSession("root", RoleAdmin, "", "인사팀"),
	})

	cases := []struct {
		ref  string
		dept string
	}{
		{"alice", "총무팀"},
		{"alice", ""},
		{"nojoin", "총무팀"},
		{"admin-x", "회계팀"},
	}
	for _, tc := range cases {
		conn := newRecorder(tc.ref + tc.dept)
		err := h.Connect(conn, Handshake{Namespace: NamespaceMain, SessionRef: tc.ref, Department: tc.dept})

		assert.ErrorIs(t, err, ErrUnauthorized, "%s -> %q", tc.ref, tc.dept)
		waitClosed(t, conn)
		assert.Equal(t, []interface{}{"부서 입장 인증이 필요합니다."}, conn.named(EventError))
	}
	for _, dept := range []string{"총무팀", "회계팀", "인사팀"} {
		assert.Empty(t, h.Departments().rooms.Members(dept))
	}
}

func TestHub_AliceJoinsOwnDepartmentOnly(t *testing.T) {
	h, _ := newTestHub(sessions{"sid": userSession("alice", RoleUser, "회계팀", "회계팀")})

	ok := newRecorder("c1")
	require.NoError(t, h.Connect(ok, Handshake{Namespace: NamespaceMain, SessionRef: "sid", Department: "회계팀"}))
	assert.False(t, ok.isClosed())
	assert.Equal(t, StateAdmitted, h.State(NamespaceMain, ok))
	assert.Equal(t, []string{"c1"}, h.Departments().rooms.Members("회계팀"))

	denied := newRecorder("c2")
	err := h.Connect(denied, Handshake{Namespace: NamespaceMain, SessionRef: "sid", Department: "총무팀"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	waitClosed(t, denied)
}

func TestHub_DepartmentBroadcastStaysInRoom(t *testing.T) {
	h, c := newTestHub(sessions{
		"a": userSession("alice", RoleUser, "회계팀", "회계팀"),
		"b": userSession("bob", RoleUser, "회계팀", "회계팀"),
		"x": userSession("xena", RoleUser, "총무팀", "총무팀"),
	})
	a, b, x := newRecorder("a"), newRecorder("b"), newRecorder("x")
	require.NoError(t, h.Connect(a, Handshake{NamespaceMain, "a", "회계팀"}))
	require.NoError(t, h.Connect(b, Handshake{NamespaceMain, "b", "회계팀"}))
	require.NoError(t, h.Connect(x, Handshake{NamespaceMain, "x", "총무팀"}))

	require.NoError(t, h.Message(NamespaceMain, a, raw(t, "결산 회의 3시")))
	settle(t, h)

	want := Message{User: "alice", Role: RoleUser, Text: "결산 회의 3시", Dept: "회계팀", At: millis(c.Now())}
	assert.Equal(t, []Message{want}, a.messages(), "sender gets an echo")
	assert.Equal(t, []Message{want}, b.messages())
	assert.Empty(t, x.messages())
}

func TestHub_DepartmentHasNoBacklog(t *testing.T) {
	h, _ := newTestHub(sessions{
		"a": userSession("alice", RoleUser, "회계팀", "회계팀"),
		"b": userSession("bob", RoleUser, "회계팀", "회계팀"),
	})
	a := newRecorder("a")
	require.NoError(t, h.Connect(a, Handshake{NamespaceMain, "a", "회계팀"}))
	require.NoError(t, h.Message(NamespaceMain, a, raw(t, "early")))

	late := newRecorder("b")
	require.NoError(t, h.Connect(late, Handshake{NamespaceMain, "b", "회계팀"}))
	settle(t, h)

	assert.Empty(t, late.messages())
}

func TestHub_DisconnectLeavesDepartment(t *testing.T) {
	h, _ := newTestHub(sessions{"a": userSession("alice", RoleUser, "회계팀", "회계팀")})
	a := newRecorder("a")
	require.NoError(t, h.Connect(a, Handshake{NamespaceMain, "a", "회계팀"}))

	h.Disconnect(NamespaceMain, a)

	assert.Empty(t, h.Departments().rooms.Members("회계팀"))
	assert.Equal(t, StateClosed, h.State(NamespaceMain, a))
	assert.ErrorIs(t, h.Message(NamespaceMain, a, raw(t, "after")), ErrNotAdmitted)
}

func TestHub_GuestScenario(t *testing.T) {
	h, _ := newTestHub(sessions{"staff": userSession("root", RoleAdmin, "", "")}, "Guest4821")

	guest := newRecorder("g")
	require.NoError(t, h.Connect(guest, Handshake{Namespace: NamespaceSupport}))
	adm, ok := h.Admission(NamespaceSupport, guest)
	require.True(t, ok)
	assert.Equal(t, "Guest4821", adm.DisplayName)
	assert.Equal(t, RoleGuest, adm.Role)
	require.NoError(t, h.Message(NamespaceSupport, guest, raw(t, "hello")))

	admin := newRecorder("admin")
	require.NoError(t, h.Connect(admin, Handshake{Namespace: NamespaceSupport, SessionRef: "staff"}))
	settle(t, h)
	assert.Equal(t, []interface{}{[]string{"Guest4821"}}, admin.named(EventRoomList))

	require.NoError(t, h.Message(NamespaceSupport, admin, raw(t, StaffReply{TargetRoom: "Guest4821", Text: "hi"})))
	settle(t, h)

	got := guest.messages()
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, StaffLabel, got[1].User)
	assert.Equal(t, RoleAdmin, got[1].Role)
	assert.Equal(t, "hi", got[1].Text)
	assert.Empty(t, admin.messages(), "staff replies go to the target room only")
}

func TestHub_VisitorMessagesReachEveryAdmin(t *testing.T) {
	h, _ := newTestHub(sessions{
		"s1": userSession("root", RoleAdmin, "", ""),
		"s2": userSession("ops", RoleAdmin, "", ""),
		"u":  userSession("alice", RoleUser, "회계팀", ""),
	})
	s1, s2, u := newRecorder("s1"), newRecorder("s2"), newRecorder("u")
	require.NoError(t, h.Connect(s1, Handshake{Namespace: NamespaceSupport, SessionRef: "s1"}))
	require.NoError(t, h.Connect(s2, Handshake{Namespace: NamespaceSupport, SessionRef: "s2"}))
	require.NoError(t, h.Connect(u, Handshake{Namespace: NamespaceSupport, SessionRef: "u"}))

	require.NoError(t, h.Message(NamespaceSupport, u, raw(t, "계정 문의")))
	settle(t, h)

	for _, staff := range []*recorder{s1, s2} {
		acts := staff.activities(EventNewMessage)
		require.Len(t, acts, 1)
		assert.Equal(t, "alice", acts[0].RoomID)
		assert.Equal(t, "계정 문의", acts[0].Message.Text)
		assert.Equal(t, RoleUser, acts[0].Message.Role)
	}
	assert.Len(t, u.messages(), 1, "visitor sees its own line")
}

func TestHub_SupportHistoryReplayAndActivity(t *testing.T) {
	h, _ := newTestHub(sessions{
		"s": userSession("root", RoleAdmin, "", ""),
		"u": userSession("alice", RoleUser, "", ""),
	})
	staffConn := newRecorder("s")
	require.NoError(t, h.Connect(staffConn, Handshake{Namespace: NamespaceSupport, SessionRef: "s"}))

	first := newRecorder("u1")
	require.NoError(t, h.Connect(first, Handshake{Namespace: NamespaceSupport, SessionRef: "u"}))
	settle(t, h)
	assert.Empty(t, staffConn.activities(EventNewActivity), "empty history is not announced")

	texts := []string{"one", "two", "three", "four"}
	for _, txt := range texts {
		require.NoError(t, h.Message(NamespaceSupport, first, raw(t, txt)))
	}
	settle(t, h)
	news := staffConn.activities(EventNewMessage)
	require.Len(t, news, len(texts))
	for i, a := range news {
		assert.Equal(t, texts[i], a.Message.Text, "each event carries the latest message")
	}
	h.Disconnect(NamespaceSupport, first)

	again := newRecorder("u2")
	require.NoError(t, h.Connect(again, Handshake{Namespace: NamespaceSupport, SessionRef: "u"}))
	settle(t, h)

	replayed := again.messages()
	require.Len(t, replayed, len(texts))
	for i, m := range replayed {
		assert.Equal(t, texts[i], m.Text)
	}
	acts := staffConn.activities(EventNewActivity)
	require.Len(t, acts, 1)
	assert.Equal(t, Activity{RoomID: "alice", Message: replayed[len(replayed)-1]}, acts[0])
}

func TestHub_AdminRoomListIsSnapshot(t *testing.T) {
	h, _ := newTestHub(sessions{"s": userSession("root", RoleAdmin, "", "")}, "Guest1111", "Guest2222")
	require.NoError(t, h.Connect(newRecorder("g1"), Handshake{Namespace: NamespaceSupport}))

	admin := newRecorder("s")
	require.NoError(t, h.Connect(admin, Handshake{Namespace: NamespaceSupport, SessionRef: "s"}))
	require.NoError(t, h.Connect(newRecorder("g2"), Handshake{Namespace: NamespaceSupport}))
	settle(t, h)

	assert.Equal(t, []interface{}{[]string{"Guest1111"}}, admin.named(EventRoomList))
	assert.Empty(t, admin.messages(), "admins get no history replay")
}

func TestHub_AdminCanOpenRoomPreemptively(t *testing.T) {
	h, _ := newTestHub(sessions{
		"s": userSession("root", RoleAdmin, "", ""),
		"u": userSession("carol", RoleUser, "", ""),
	})
	admin := newRecorder("s")
	require.NoError(t, h.Connect(admin, Handshake{Namespace: NamespaceSupport, SessionRef: "s"}))

	require.NoError(t, h.Message(NamespaceSupport, admin, raw(t, StaffReply{TargetRoom: "carol", Text: "안내드립니다"})))

	visitorConn := newRecorder("u")
	require.NoError(t, h.Connect(visitorConn, Handshake{Namespace: NamespaceSupport, SessionRef: "u"}))
	settle(t, h)
	got := visitorConn.messages()
	require.Len(t, got, 1)
	assert.Equal(t, StaffLabel, got[0].User)
}

func TestHub_MalformedStaffMessage(t *testing.T) {
	h, _ := newTestHub(sessions{"s": userSession("root", RoleAdmin, "", "")}, "Guest5000")
	guest := newRecorder("g")
	require.NoError(t, h.Connect(guest, Handshake{Namespace: NamespaceSupport}))
	admin := newRecorder("s")
	require.NoError(t, h.Connect(admin, Handshake{Namespace: NamespaceSupport, SessionRef: "s"}))

	payloads := []json.RawMessage{
		raw(t, "no target"),
		raw(t, map[string]string{"text": "missing target"}),
		raw(t, StaffReply{TargetRoom: "  ", Text: "blank"}),
		raw(t, StaffReply{TargetRoom: StaffRoom, Text: "loop"}),
	}
	for _, p := range payloads {
		err := h.Message(NamespaceSupport, admin, p)
		assert.ErrorIs(t, err, ErrMalformedPayload, string(p))
	}
	settle(t, h)

	assert.False(t, admin.isClosed(), "a bad payload does not drop the admin")
	assert.Len(t, admin.named(EventError), len(payloads))
	assert.Empty(t, h.Desk().History("Guest5000"))
	assert.Empty(t, h.Desk().History(StaffRoom))
	assert.Equal(t, []string{"Guest5000"}, h.Desk().VisitorRooms())
}

func TestHub_MalformedVisitorMessage(t *testing.T) {
	h, _ := newTestHub(sessions{}, "Guest6000")
	guest := newRecorder("g")
	require.NoError(t, h.Connect(guest, Handshake{Namespace: NamespaceSupport}))

	err := h.Message(NamespaceSupport, guest, json.RawMessage(`42`))

	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Empty(t, h.Desk().History("Guest6000"))
}

func TestHub_VisitorMayWrapTextInObject(t *testing.T) {
	h, _ := newTestHub(sessions{}, "Guest7000")
	guest := newRecorder("g")
	require.NoError(t, h.Connect(guest, Handshake{Namespace: NamespaceSupport}))

	require.NoError(t, h.Message(NamespaceSupport, guest, raw(t, map[string]string{"text": "wrapped"})))

	hist := h.Desk().History("Guest7000")
	require.Len(t, hist, 1)
	assert.Equal(t, "wrapped", hist[0].Text)
	assert.Equal(t, RoleGuest, hist[0].Role)
}

func TestHub_ReservedStaffRoomIDRejected(t *testing.T) {
	h, _ := newTestHub(sessions{"u": userSession(StaffRoom, RoleUser, "", "")})
	conn := newRecorder("u")

	err := h.Connect(conn, Handshake{Namespace: NamespaceSupport, SessionRef: "u"})

	assert.ErrorIs(t, err, ErrUnauthorized)
	waitClosed(t, conn)
}

func TestHub_GuestNameStablePerConnection(t *testing.T) {
	h, _ := newTestHub(sessions{}, "Guest1234")
	guest := newRecorder("g")
	require.NoError(t, h.Connect(guest, Handshake{Namespace: NamespaceSupport}))

	require.NoError(t, h.Message(NamespaceSupport, guest, raw(t, "a")))
	require.NoError(t, h.Message(NamespaceSupport, guest, raw(t, "b")))

	for _, m := range h.Desk().History("Guest1234") {
		assert.Equal(t, "Guest1234", m.User)
	}
}

func TestGuestNamer_FourDigits(t *testing.T) {
	next := newGuestNamer(42)
	for i := 0; i < 500; i++ {
		assert.Regexp(t, `^Guest[1-9][0-9]{3}$`, next())
	}
}

func TestHub_ConcurrentVisitorsKeepArrivalOrder(t *testing.T) {
	h, _ := newTestHub(sessions{
		"s": userSession("root", RoleAdmin, "", ""),
		"u": userSession("dave", RoleUser, "", ""),
	})
	admin := newRecorder("s")
	require.NoError(t, h.Connect(admin, Handshake{Namespace: NamespaceSupport, SessionRef: "s"}))
	tabs := []*recorder{newRecorder("t1"), newRecorder("t2"), newRecorder("t3")}
	for _, tab := range tabs {
		require.NoError(t, h.Connect(tab, Handshake{Namespace: NamespaceSupport, SessionRef: "u"}))
	}

	var wg sync.WaitGroup
	for i, tab := range tabs {
		wg.Add(1)
		go func(i int, tab *recorder) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.Message(NamespaceSupport, tab, raw(t, fmt.Sprintf("%d-%d", i, j)))
				_ = h.Message(NamespaceSupport, admin, raw(t, StaffReply{TargetRoom: "dave", Text: "ack"}))
			}
		}(i, tab)
	}
	wg.Wait()
	settle(t, h)

	hist := h.Desk().History("dave")
	require.Len(t, hist, 300)
	for _, tab := range tabs {
		assert.Equal(t, hist, tab.messages(), "every member saw history order")
	}
	news := admin.activities(EventNewMessage)
	var visitorLines []Message
	for _, m := range hist {
		if m.Role != RoleAdmin {
			visitorLines = append(visitorLines, m)
		}
	}
	require.Len(t, news, len(visitorLines))
	for i := range news {
		assert.Equal(t, visitorLines[i], news[i].Message)
	}
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveEvent(ns, event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[ns+" "+event]++
}

func TestHub_ObserverSeesEvents(t *testing.T) {
	obs := &countingObserver{counts: map[string]int{}}
	h := NewHub(sessions{"a": userSession("alice", RoleUser, "회계팀", "회계팀")}, WithObserver(obs))

	conn := newRecorder("a")
	require.NoError(t, h.Connect(conn, Handshake{NamespaceMain, "a", "회계팀"}))
	require.NoError(t, h.Message(NamespaceMain, conn, raw(t, "hi")))
	h.Disconnect(NamespaceMain, conn)
	_ = h.Connect(newRecorder("b"), Handshake{NamespaceMain, "", "회계팀"})

	assert.Equal(t, map[string]int{
		"/dept connect":      1,
		"/dept chat message": 1,
		"/dept disconnect":   1,
		"/dept reject":       1,
	}, obs.counts)
}

func TestHub_SweepKeepsLiveAndStaffRooms(t *testing.T) {
	h, c := newTestHub(sessions{"s": userSession("root", RoleAdmin, "", "")}, "Guest1000", "Guest2000")
	gone := newRecorder("g1")
	require.NoError(t, h.Connect(gone, Handshake{Namespace: NamespaceSupport}))
	require.NoError(t, h.Message(NamespaceSupport, gone, raw(t, "bye")))
	h.Disconnect(NamespaceSupport, gone)
	require.NoError(t, h.Connect(newRecorder("g2"), Handshake{Namespace: NamespaceSupport}))

	c.Advance(25 * time.Hour)

	assert.Equal(t, []string{"Guest1000"}, h.Sweep(24*time.Hour))
	assert.Equal(t, []string{"Guest2000"}, h.Desk().VisitorRooms())
	_, ok := h.Desk().rooms.Lookup(StaffRoom)
	assert.True(t, ok)
}

func TestHub_AcceptRecordsConnecting(t *testing.T) {
	h, _ := newTestHub(sessions{"a": userSession("alice", RoleUser, "회계팀", "회계팀")})
	conn := newRecorder("a")

	h.Accept(NamespaceMain, conn)
	assert.Equal(t, StateConnecting, h.State(NamespaceMain, conn))

	require.NoError(t, h.Connect(conn, Handshake{NamespaceMain, "a", "회계팀"}))
	assert.Equal(t, StateAdmitted, h.State(NamespaceMain, conn))
}

func TestHub_MemberNamedLikeGuestIsRejected(t *testing.T) {
	h, _ := newTestHub(sessions{"m": userSession("Guest1234", RoleUser, "", "")}, "Guest1234")
	member := newRecorder("m")

	err := h.Connect(member, Handshake{Namespace: NamespaceSupport, SessionRef: "m"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	waitClosed(t, member)
	assert.ErrorIs(t, h.Message(NamespaceSupport, member, raw(t, "payroll question, account 555-01")), ErrNotAdmitted)

	guest := newRecorder("g")
	require.NoError(t, h.Connect(guest, Handshake{Namespace: NamespaceSupport}))
	settle(t, h)

	assert.Empty(t, guest.messages())
	assert.Empty(t, h.Desk().History("Guest1234"))
}

func TestHub_RejectKeepsSiblingNamespaceOpen(t *testing.T) {
	h, _ := newTestHub(sessions{}, "Guest2468")
	// one transport connection seen through two namespaces
	support, dept := newRecorder("phys"), newRecorder("phys")
	require.NoError(t, h.Connect(support, Handshake{Namespace: NamespaceSupport}))

	err := h.Connect(dept, Handshake{Namespace: NamespaceMain, Department: "회계팀"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.Eventually(t, func() bool { return len(dept.named(EventError)) == 1 }, time.Second, time.Millisecond)
	assert.Never(t, dept.isClosed, 50*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, h.Message(NamespaceSupport, support, raw(t, "still here")))
	settle(t, h)
	assert.Len(t, support.messages(), 1)
}

func TestHub_StalledAdminDoesNotBlockVisitors(t *testing.T) {
	h, _ := newTestHub(sessions{"s": userSession("root", RoleAdmin, "", "")}, "Guest3000")
	admin := newStalled("s")
	require.NoError(t, h.Connect(admin, Handshake{Namespace: NamespaceSupport, SessionRef: "s"}))
	guest := newRecorder("g")
	require.NoError(t, h.Connect(guest, Handshake{Namespace: NamespaceSupport}))

	payloads := make([]json.RawMessage, 10)
	for i := range payloads {
		payloads[i] = raw(t, fmt.Sprintf("line %d", i))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, p := range payloads {
			_ = h.Message(NamespaceSupport, guest, p)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("visitor messages waited on the staff connection")
	}
	require.Eventually(t, func() bool { return len(guest.messages()) == len(payloads) }, time.Second, time.Millisecond)

	close(admin.gate)
	settle(t, h)
	assert.Len(t, admin.activities(EventNewMessage), len(payloads))
}
