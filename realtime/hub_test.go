package realtime

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

type fakeSession struct {
	id string

	mu       sync.Mutex
	received []Envelope
}

func newFakeSession(id string) *fakeSession { return &fakeSession{id: id} }

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Send(env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, env)
	return nil
}

func (f *fakeSession) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, env := range f.received {
		out[i] = env.Event
	}
	return out
}

func (f *fakeSession) last() Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.received) == 0 {
		return Envelope{}
	}
	return f.received[len(f.received)-1]
}

func newTestHub() *Hub {
	logger, _ := test.NewNullLogger()
	return NewHub(logger)
}

func TestSubscribeAcksAndNotifiesRoom(t *testing.T) {
	hub := newTestHub()
	a := newFakeSession("a")
	b := newFakeSession("b")

	hub.Subscribe(a, "b1")
	if got := a.events(); len(got) != 1 || got[0] != EventBoardJoined {
		t.Fatalf("expected join ack, got %v", got)
	}

	hub.Subscribe(b, "b1")
	if got := a.events(); len(got) != 2 || got[1] != EventPresenceJoined {
		t.Fatalf("expected presence:joined at a, got %v", got)
	}
	if env := a.last(); env.Payload.(presencePayload).SessionID != "b" {
		t.Fatalf("unexpected presence payload: %#v", env.Payload)
	}
	if got := b.events(); len(got) != 1 || got[0] != EventBoardJoined {
		t.Fatalf("expected only join ack at b, got %v", got)
	}
	if hub.RoomSize("b1") != 2 {
		t.Fatalf("expected room size 2, got %d", hub.RoomSize("b1"))
	}
}

func TestBroadcastReachesRoomOnly(t *testing.T) {
	hub := newTestHub()
	a := newFakeSession("a")
	b := newFakeSession("b")
	c := newFakeSession("c")
	hub.Subscribe(a, "b1")
	hub.Subscribe(b, "b1")
	hub.Subscribe(c, "b2")

	hub.Broadcast("b1", EventCardCreated, map[string]string{"id": "card-1"})

	for _, s := range []*fakeSession{a, b} {
		env := s.last()
		if env.Event != EventCardCreated || env.BoardID != "b1" {
			t.Fatalf("session %s: unexpected envelope %#v", s.id, env)
		}
		if env.Timestamp == 0 {
			t.Fatalf("session %s: missing server timestamp", s.id)
		}
	}
	for _, env := range c.events() {
		if env == EventCardCreated {
			t.Fatal("session in b2 received b1 traffic")
		}
	}
}

func TestBroadcastToEmptyRoomIsSilent(t *testing.T) {
	hub := newTestHub()
	// No members, no panic, nothing delivered anywhere.
	hub.Broadcast("nowhere", EventCardCreated, nil)
	if hub.RoomSize("nowhere") != 0 {
		t.Fatal("empty broadcast must not create a room")
	}
}

func TestSubscribeElsewhereLeavesOldRoomFirst(t *testing.T) {
	hub := newTestHub()
	a := newFakeSession("a")
	watcher := newFakeSession("w")
	hub.Subscribe(watcher, "b1")
	hub.Subscribe(a, "b1")

	hub.Subscribe(a, "b2")

	if env := watcher.last(); env.Event != EventPresenceLeft || env.Payload.(presencePayload).SessionID != "a" {
		t.Fatalf("expected presence:left at watcher, got %#v", env)
	}
	if hub.RoomSize("b1") != 1 || hub.RoomSize("b2") != 1 {
		t.Fatalf("unexpected room sizes: b1=%d b2=%d", hub.RoomSize("b1"), hub.RoomSize("b2"))
	}

	// A connection is in at most one room: b1 traffic must not reach a.
	hub.Broadcast("b1", EventCardCreated, nil)
	for _, ev := range a.events() {
		if ev == EventCardCreated {
			t.Fatal("session received traffic for a room it left")
		}
	}
}

func TestDisconnectNotifiesRemainingMembers(t *testing.T) {
	hub := newTestHub()
	a := newFakeSession("a")
	b := newFakeSession("b")
	hub.Subscribe(a, "b1")
	hub.Subscribe(b, "b1")

	hub.Disconnect(b)

	if env := a.last(); env.Event != EventPresenceLeft || env.Payload.(presencePayload).SessionID != "b" {
		t.Fatalf("expected presence:left, got %#v", env)
	}
	if hub.RoomSize("b1") != 1 {
		t.Fatalf("expected room size 1, got %d", hub.RoomSize("b1"))
	}

	// Disconnecting an unknown session is harmless.
	hub.Disconnect(newFakeSession("ghost"))
}

func TestBroadcastTimestampsIncreasePerRoom(t *testing.T) {
	hub := newTestHub()
	a := newFakeSession("a")
	hub.Subscribe(a, "b1")

	hub.Broadcast("b1", EventCardCreated, nil)
	hub.Broadcast("b1", EventCardUpdated, nil)
	hub.Broadcast("b1", EventCardDeleted, nil)

	a.mu.Lock()
	defer a.mu.Unlock()
	var prev int64
	for _, env := range a.received {
		if env.Timestamp <= prev {
			t.Fatalf("timestamps not strictly increasing: %v then %v", prev, env.Timestamp)
		}
		prev = env.Timestamp
	}
}

func TestBroadcastMirrorsToPublisher(t *testing.T) {
	hub := newTestHub()
	var published []Envelope
	hub.SetPublisher(func(env Envelope) { published = append(published, env) })

	hub.Broadcast("b1", EventColumnCreated, nil)

	if len(published) != 1 || published[0].Event != EventColumnCreated {
		t.Fatalf("expected mirrored envelope, got %#v", published)
	}
}
