package rooms

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/dkeye/Screen/internal/core"
	"github.com/dkeye/Screen/internal/domain"
)

type emitted struct {
	To      domain.ConnID
	Room    domain.RoomID
	Except  domain.ConnID
	Event   string
	Payload any
}

type fakeGateway struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID]map[domain.ConnID]struct{}
	events []emitted
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{rooms: make(map[domain.RoomID]map[domain.ConnID]struct{})}
}

func (g *fakeGateway) EmitToConnection(id domain.ConnID, event string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, emitted{To: id, Event: event, Payload: payload})
}

func (g *fakeGateway) EmitToRoom(roomID domain.RoomID, event string, payload any, except domain.ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, emitted{Room: roomID, Except: except, Event: event, Payload: payload})
}

func (g *fakeGateway) Broadcast(event string, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, emitted{Event: event, Payload: payload})
}

func (g *fakeGateway) JoinRoom(id domain.ConnID, roomID domain.RoomID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[roomID] == nil {
		g.rooms[roomID] = make(map[domain.ConnID]struct{})
	}
	g.rooms[roomID][id] = struct{}{}
}

func (g *fakeGateway) LeaveRoom(id domain.ConnID, roomID domain.RoomID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms[roomID], id)
}

func (g *fakeGateway) SocketsInRoom(roomID domain.RoomID) []domain.ConnID {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ConnID, 0, len(g.rooms[roomID]))
	for id := range g.rooms[roomID] {
		out = append(out, id)
	}
	return out
}

func (g *fakeGateway) lastTo(id domain.ConnID, event string) (emitted, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].To == id && g.events[i].Event == event {
			return g.events[i], true
		}
	}
	return emitted{}, false
}

func (g *fakeGateway) roomEvents(roomID domain.RoomID, event string) []emitted {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []emitted
	for _, e := range g.events {
		if e.Room == roomID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	gw  *fakeGateway
	reg *core.Registry
	eng *Engine
}

func newFixture(autoCreate bool) *fixture {
	gw := newFakeGateway()
	reg := core.NewRegistry()
	return &fixture{gw: gw, reg: reg, eng: NewEngine(gw, reg, autoCreate)}
}

func (f *fixture) connect(id string) *core.Connection {
	c := core.NewConnection(domain.ConnID(id), "10.0.0.5")
	f.reg.Add(c)
	return c
}

func participantsOf(t *testing.T, ev emitted) []domain.PeerID {
	t.Helper()
	p, ok := ev.Payload.(getUsersPayload)
	if !ok {
		t.Fatalf("unexpected payload %T", ev.Payload)
	}
	return p.Participants
}

func TestTwoPartyRoom(t *testing.T) {
	f := newFixture(true)
	c1 := f.connect("c1")
	c2 := f.connect("c2")

	f.eng.CreateRoom(c1)
	created, ok := f.gw.lastTo(c1.ID, "room-created")
	if !ok {
		t.Fatal("no room-created event")
	}
	roomID := created.Payload.(roomCreatedPayload).RoomID
	if c1.State().RoomID != roomID {
		t.Errorf("creator roomId not attached")
	}

	f.eng.Join(c2, string(roomID), "p2")
	ev, ok := f.gw.lastTo(c2.ID, "get-users")
	if !ok {
		t.Fatal("no get-users for c2")
	}
	got := participantsOf(t, ev)
	if len(got) != 1 || got[0] != "p2" {
		t.Errorf("participants after c2 join = %v", got)
	}

	f.eng.Join(c1, string(roomID), "p1")
	ev, ok = f.gw.lastTo(c1.ID, "get-users")
	if !ok {
		t.Fatal("no get-users for c1")
	}
	got = participantsOf(t, ev)
	if len(got) != 2 || got[0] != "p2" || got[1] != "p1" {
		t.Errorf("participants after c1 join = %v", got)
	}

	f.eng.Ready(c1)
	joined := f.gw.roomEvents(roomID, "user-joined")
	if len(joined) != 1 {
		t.Fatalf("user-joined fanout count = %d", len(joined))
	}
	if joined[0].Except != c1.ID {
		t.Errorf("user-joined should except the announcer")
	}
	if p := joined[0].Payload.(peerPayload).PeerID; p != "p1" {
		t.Errorf("user-joined peer = %s", p)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(false)
	c := f.connect("c1")
	f.eng.Join(c, uuid.NewString(), "p1")
	if _, ok := f.gw.lastTo(c.ID, "room-not-found"); !ok {
		t.Error("expected room-not-found with auto-create disabled")
	}

	f = newFixture(true)
	c = f.connect("c1")
	f.eng.Join(c, "not-a-uuid", "p1")
	if _, ok := f.gw.lastTo(c.ID, "room-not-found"); !ok {
		t.Error("expected room-not-found for non-uuid room id")
	}

	roomID := uuid.NewString()
	f.eng.Join(c, roomID, "p1")
	if _, ok := f.gw.lastTo(c.ID, "get-users"); !ok {
		t.Error("expected uuid-shaped room to be auto-created")
	}
	if !f.eng.Exists(domain.RoomID(roomID)) {
		t.Error("auto-created room missing")
	}
}

func TestRejoinIsIdempotent(t *testing.T) {
	f := newFixture(true)
	c := f.connect("c1")
	roomID := uuid.NewString()

	f.eng.Join(c, roomID, "p1")
	f.eng.Join(c, roomID, "p1")

	ev, _ := f.gw.lastTo(c.ID, "get-users")
	got := participantsOf(t, ev)
	if len(got) != 1 || got[0] != "p1" {
		t.Errorf("participants after double join = %v", got)
	}
}

func TestPeerEviction(t *testing.T) {
	f := newFixture(true)
	old := f.connect("old")
	fresh := f.connect("fresh")
	roomID := uuid.NewString()

	f.eng.Join(old, roomID, "p1")
	f.eng.Join(fresh, roomID, "p1")

	if got, _ := f.eng.PeerConn(domain.RoomID(roomID), "p1"); got != fresh.ID {
		t.Errorf("peer should map to the fresh connection, got %s", got)
	}
	st := old.State()
	if st.RoomID != "" || st.PeerID != "" {
		t.Errorf("evicted connection kept attached state: %+v", st)
	}
	if left := f.gw.roomEvents(domain.RoomID(roomID), "user-left"); len(left) == 0 {
		t.Error("eviction should fan out user-left")
	}
}

func TestRoomDeletionConjunction(t *testing.T) {
	f := newFixture(true)
	creator := f.connect("c1")
	f.eng.CreateRoom(creator)
	roomID := creator.State().RoomID

	// Creator joined at transport level but has no peer id yet; the room
	// must survive a pruning pass.
	f.eng.mu.Lock()
	f.eng.prune(roomID)
	f.eng.mu.Unlock()
	if !f.eng.Exists(roomID) {
		t.Fatal("room deleted while creator socket still joined")
	}

	f.eng.Join(creator, string(roomID), "p1")
	f.eng.Leave(creator)
	if f.eng.Exists(roomID) {
		t.Error("room should be deleted after last leave")
	}
}

func TestPruneDropsDeadConnections(t *testing.T) {
	f := newFixture(true)
	dead := f.connect("dead")
	live := f.connect("live")
	roomID := uuid.NewString()

	f.eng.Join(dead, roomID, "p-dead")
	f.eng.Join(live, roomID, "p-live")

	f.reg.Remove(dead.ID)
	f.gw.LeaveRoom(dead.ID, domain.RoomID(roomID))

	f.eng.mu.Lock()
	f.eng.prune(domain.RoomID(roomID))
	f.eng.mu.Unlock()

	got := f.eng.Participants(domain.RoomID(roomID))
	if len(got) != 1 || got[0] != "p-live" {
		t.Errorf("participants after prune = %v", got)
	}
	if _, ok := f.eng.PeerConn(domain.RoomID(roomID), "p-dead"); ok {
		t.Error("dead peer still resolvable")
	}
}

func TestLeaveNotifiesRoom(t *testing.T) {
	f := newFixture(true)
	c1 := f.connect("c1")
	c2 := f.connect("c2")
	roomID := uuid.NewString()

	f.eng.Join(c1, roomID, "p1")
	f.eng.Join(c2, roomID, "p2")
	f.eng.Leave(c1)

	left := f.gw.roomEvents(domain.RoomID(roomID), "user-left")
	if len(left) == 0 {
		t.Fatal("no user-left fanout")
	}
	if p := left[len(left)-1].Payload.(peerPayload).PeerID; p != "p1" {
		t.Errorf("user-left peer = %s", p)
	}
	if st := c1.State(); st.RoomID != "" || st.PeerID != "" {
		t.Errorf("leave kept attached state: %+v", st)
	}
}
