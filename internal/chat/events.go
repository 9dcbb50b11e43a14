package chat

// EventType names an outbound event on the wire.
type EventType string

const (
	// EventChatHistory carries the full history to a newly joined connection.
	EventChatHistory EventType = "chat-history"
	// EventUsersList carries the full roster to a newly joined connection.
	EventUsersList EventType = "users-list"
	// EventNewMessage announces an appended message to every connection.
	EventNewMessage EventType = "new-message"
	// EventMessageEdited announces an edit to every connection.
	EventMessageEdited EventType = "message-edited"
	// EventUserJoined announces a new session to every other connection.
	EventUserJoined EventType = "user-joined"
	// EventUserLeft carries the departed connection id to every other connection.
	EventUserLeft EventType = "user-left"
	// EventUserUpdated announces a profile change to every connection.
	EventUserUpdated EventType = "user-updated"
)

// Event is one outbound frame.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// EventSender delivers events to a single connection. Implementations must
// not block: the coordinator calls Send while holding its lock, and a slow
// consumer must fail fast rather than stall the broadcast.
type EventSender interface {
	Send(ev Event) error
}
