package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
)

func relayFixture(t *testing.T) (*Hub, *Relay, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	relay := NewRelay(hub, client, "kanban:updates", logger)
	return hub, relay, client
}

func waitForEvent(t *testing.T, s *fakeSession, event string, timeout time.Duration) Envelope {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		for _, env := range s.received {
			if env.Event == event {
				s.mu.Unlock()
				return env
			}
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", event)
	return Envelope{}
}

func TestRelayDeliversRemoteEnvelopes(t *testing.T) {
	hub, relay, client := relayFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	viewer := newFakeSession("viewer")
	hub.Subscribe(viewer, "b1")

	// An envelope published by a different instance must reach local rooms.
	remote := relayMessage{
		Instance: "other-instance",
		Envelope: Envelope{Event: EventCardCreated, BoardID: "b1", Timestamp: 42},
	}
	data, err := json.Marshal(remote)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// The subscriber needs a moment to attach before the publish.
	time.Sleep(50 * time.Millisecond)
	if err := client.Publish(context.Background(), "kanban:updates", data).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	env := waitForEvent(t, viewer, EventCardCreated, time.Second)
	if env.BoardID != "b1" || env.Timestamp != 42 {
		t.Fatalf("unexpected envelope: %#v", env)
	}
}

func TestRelaySkipsOwnEnvelopes(t *testing.T) {
	hub, relay, _ := relayFixture(t)
	hub.SetPublisher(relay.Publish)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	viewer := newFakeSession("viewer")
	hub.Subscribe(viewer, "b1")

	hub.Broadcast("b1", EventColumnCreated, nil)

	// Local delivery happens exactly once; the relayed echo must be
	// filtered out by the instance id.
	time.Sleep(100 * time.Millisecond)
	count := 0
	for _, ev := range viewer.events() {
		if ev == EventColumnCreated {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", count)
	}
}
