package api

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Matteo-Daniele/useTeam-PT/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsCommand is the only client-to-server frame: room membership
// control. Mutations always travel over HTTP.
type wsCommand struct {
	Action  string `json:"action"`
	BoardID string `json:"boardId"`
}

const (
	actionJoinBoard  = "board:join"
	actionLeaveBoard = "board:leave"
)

// wsSession adapts one websocket connection to the hub. The hub may
// call Send from several broadcast paths, so writes are serialized
// behind a mutex.
type wsSession struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Send(env realtime.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

func serveWS(hub *realtime.Hub, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.Warnf("websocket upgrade failed: %v", err)
			return nil
		}
		session := &wsSession{id: uuid.NewString(), conn: conn}
		logger.WithField("session", session.id).Debug("websocket connected")

		defer func() {
			hub.Disconnect(session)
			_ = conn.Close()
			logger.WithField("session", session.id).Debug("websocket disconnected")
		}()

		for {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithField("session", session.id).Warnf("websocket read failed: %v", err)
				}
				return nil
			}
			switch cmd.Action {
			case actionJoinBoard:
				if cmd.BoardID != "" {
					hub.Subscribe(session, cmd.BoardID)
				}
			case actionLeaveBoard:
				hub.Unsubscribe(session, cmd.BoardID)
			default:
				logger.WithField("session", session.id).Debugf("ignoring unknown action %q", cmd.Action)
			}
		}
	}
}
