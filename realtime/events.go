package realtime

// Event names delivered to subscribed clients. One mutation maps to
// exactly one event; batch reorders carry the complete new ordering.
const (
	EventBoardCreated = "board:created"
	EventBoardUpdated = "board:updated"
	EventBoardDeleted = "board:deleted"

	EventColumnCreated    = "column:created"
	EventColumnUpdated    = "column:updated"
	EventColumnDeleted    = "column:deleted"
	EventColumnsReordered = "columns:reordered"

	EventCardCreated    = "card:created"
	EventCardUpdated    = "card:updated"
	EventCardMoved      = "card:moved"
	EventCardDeleted    = "card:deleted"
	EventCardsReordered = "cards:reordered"

	EventPresenceJoined = "presence:joined"
	EventPresenceLeft   = "presence:left"
	EventBoardJoined    = "board:joined"

	EventExportSuccess = "export:success"
	EventExportError   = "export:error"
)

// Envelope is the wire frame for every broadcast. Timestamp is assigned
// by the server at emission and is strictly increasing per process.
type Envelope struct {
	Event     string `json:"event"`
	BoardID   string `json:"boardId"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"ts"`
}
