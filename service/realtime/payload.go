package realtime

import (
	"encoding/json"
	"time"
)

// event kinds pushed to clients
const (
	EventNewMessage      = "new_message"
	EventNewNotification = "new_notification"
	EventUserOnline      = "user_online"
	EventUserOffline     = "user_offline"
	EventPong            = "pong"
	EventTyping          = "typing"
	EventProjectStatus   = "project_status"
)

// Payload is the outbound frame: {"type": ..., "data"|"message": ...}.
type Payload struct {
	Type           string `json:"type"`
	Data           any    `json:"data,omitempty"`
	Message        any    `json:"message,omitempty"`
	RoomID         string `json:"room_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
}

func Pong() Payload { return Payload{Type: EventPong} }

func PresencePayload(key string, online bool, at time.Time) Payload {
	kind := EventUserOffline
	if online {
		kind = EventUserOnline
	}
	return Payload{Type: kind, UserID: key, Timestamp: at.UTC().Format(time.RFC3339)}
}

// encode accepts raw JSON as-is and marshals anything else.
func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}

// inboundFrame is what clients may send besides the bare "ping" text.
type inboundFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}
