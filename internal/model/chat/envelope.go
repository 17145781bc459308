package chat

// EventType discriminates realtime payloads.
type EventType string

const (
	EventNewMessage       EventType = "new_message"
	EventAIResponse       EventType = "ai_response"
	EventEscalationNotice EventType = "escalation_notice"

	// EventChatMessage is the only frame type clients send.
	EventChatMessage EventType = "chat_message"
)

// Envelope is the frame pushed to every realtime connection.
type Envelope struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}
