package realtime

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Session is one realtime connection. Send must be safe for concurrent
// use; the websocket transport serializes writes behind a mutex.
type Session interface {
	ID() string
	Send(Envelope) error
}

// presencePayload accompanies presence:joined / presence:left events.
type presencePayload struct {
	SessionID string `json:"sessionId"`
}

// joinAckPayload confirms a subscription to the joining session itself.
type joinAckPayload struct {
	BoardID string `json:"boardId"`
}

// Hub is the room registry: it maps every session to the single board
// it is watching and fans mutation events out to the room. It owns no
// board data, only the ephemeral membership map. All membership
// mutation and all emission happen under one lock, which keeps
// per-room delivery in issue order.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[Session]bool
	members map[Session]string

	// publish, when set, mirrors every mutation broadcast to the
	// cross-instance relay. Presence events stay local.
	publish func(Envelope)

	log *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[Session]bool),
		members: make(map[Session]string),
		log:     logger,
	}
}

// SetPublisher installs the cross-instance relay hook. It must be
// called before the hub starts receiving traffic.
func (h *Hub) SetPublisher(publish func(Envelope)) {
	h.publish = publish
}

// Subscribe adds the session to boardID's room, implicitly leaving any
// previous room first. The rest of the room learns via
// presence:joined; the session itself receives a board:joined ack.
// Board existence is not validated here: rooms are created lazily and
// the mutation path is responsible for rejecting unknown boards.
func (h *Hub) Subscribe(s Session, boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.members[s]; ok {
		if prev == boardID {
			h.sendLocked(s, Envelope{Event: EventBoardJoined, BoardID: boardID, Payload: joinAckPayload{BoardID: boardID}, Timestamp: nextTimestamp()})
			return
		}
		h.leaveLocked(s, prev)
	}

	room := h.rooms[boardID]
	if room == nil {
		room = make(map[Session]bool)
		h.rooms[boardID] = room
	}
	room[s] = true
	h.members[s] = boardID
	h.log.WithFields(log.Fields{"session": s.ID(), "board": boardID, "room_size": len(room)}).Debug("session joined board")

	joined := Envelope{Event: EventPresenceJoined, BoardID: boardID, Payload: presencePayload{SessionID: s.ID()}, Timestamp: nextTimestamp()}
	for member := range room {
		if member == s {
			continue
		}
		h.sendLocked(member, joined)
	}
	h.sendLocked(s, Envelope{Event: EventBoardJoined, BoardID: boardID, Payload: joinAckPayload{BoardID: boardID}, Timestamp: nextTimestamp()})
}

// Unsubscribe removes the session from boardID's room and notifies the
// remaining members. Unsubscribing from a room the session is not in is
// a no-op.
func (h *Hub) Unsubscribe(s Session, boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.members[s] != boardID {
		return
	}
	h.leaveLocked(s, boardID)
}

// Disconnect removes the session from whatever room it occupies.
func (h *Hub) Disconnect(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if boardID, ok := h.members[s]; ok {
		h.leaveLocked(s, boardID)
	}
}

// Broadcast stamps the payload with a server timestamp and delivers it
// to every session in the room, the originator included: clients treat
// echoes of their own mutations as refresh signals. A room with no
// members is a silent no-op. The envelope is also mirrored to the
// relay for other instances.
func (h *Hub) Broadcast(boardID, event string, payload any) {
	env := Envelope{Event: event, BoardID: boardID, Payload: payload, Timestamp: nextTimestamp()}
	if h.publish != nil {
		h.publish(env)
	}
	h.deliver(env)
}

// deliver sends an already-stamped envelope to the local room. The
// relay uses it for envelopes originating on other instances.
func (h *Hub) deliver(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[env.BoardID]
	if !ok || len(room) == 0 {
		return
	}
	h.log.WithFields(log.Fields{"event": env.Event, "board": env.BoardID, "recipients": len(room)}).Debug("broadcast")
	for s := range room {
		h.sendLocked(s, env)
	}
}

// RoomSize reports how many sessions are watching the board.
func (h *Hub) RoomSize(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}

func (h *Hub) leaveLocked(s Session, boardID string) {
	room, ok := h.rooms[boardID]
	if !ok {
		return
	}
	delete(room, s)
	delete(h.members, s)
	if len(room) == 0 {
		delete(h.rooms, boardID)
	}
	h.log.WithFields(log.Fields{"session": s.ID(), "board": boardID, "room_size": len(room)}).Debug("session left board")

	left := Envelope{Event: EventPresenceLeft, BoardID: boardID, Payload: presencePayload{SessionID: s.ID()}, Timestamp: nextTimestamp()}
	for member := range room {
		h.sendLocked(member, left)
	}
}

func (h *Hub) sendLocked(s Session, env Envelope) {
	if err := s.Send(env); err != nil {
		h.log.WithFields(log.Fields{"session": s.ID(), "event": env.Event}).Warnf("send failed: %v", err)
	}
}
