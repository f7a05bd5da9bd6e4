package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types understood by the client.
const (
	TypePing              = "ping"
	TypeParentView        = "parent_view"
	TypeParentViewSuccess = "parent_view_success"
	TypeError             = "error"
)

// Errors
var (
	ErrMissingType = errors.New("message has no type")
	ErrWrongType   = errors.New("unexpected message type")
)

// Message is a single wire message: a JSON object with a mandatory "type"
// field plus arbitrary message-specific fields.
type Message map[string]any

// NewMessage builds a message of the given type. Entries in fields are copied;
// a "type" key in fields is overwritten.
func NewMessage(msgType string, fields map[string]any) Message {
	m := make(Message, len(fields)+1)
	for k, v := range fields {
		m[k] = v
	}
	m["type"] = msgType
	return m
}

// Ping returns a keepalive message.
func Ping() Message {
	return Message{"type": TypePing}
}

// ParentView returns the handshake message for a read-only parent session.
func ParentView(token string) Message {
	return Message{"type": TypeParentView, "token": token}
}

// Type returns the routing type, or "" if absent or not a string.
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

// Validate checks the mandatory type field.
func (m Message) Validate() error {
	if m.Type() == "" {
		return ErrMissingType
	}
	return nil
}

// Encode serializes the message for a single frame.
func (m Message) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Type(), err)
	}
	return data, nil
}

// Decode parses one frame into a Message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParentViewSuccess is the typed payload of a parent_view_success reply.
type ParentViewSuccess struct {
	AthleteID int64          `json:"athleteId"`
	Extra     map[string]any `json:"-"`
}

// ParseParentViewSuccess extracts the resolved athlete identity from a
// parent_view_success message.
func ParseParentViewSuccess(m Message) (ParentViewSuccess, error) {
	if m.Type() != TypeParentViewSuccess {
		return ParentViewSuccess{}, fmt.Errorf("%w: %q", ErrWrongType, m.Type())
	}
	data, ok := m["data"].(map[string]any)
	if !ok {
		return ParentViewSuccess{}, errors.New("parent_view_success: missing data object")
	}

	var out ParentViewSuccess
	out.Extra = make(map[string]any, len(data))
	for k, v := range data {
		if k == "athleteId" {
			continue
		}
		out.Extra[k] = v
	}

	switch id := data["athleteId"].(type) {
	case float64:
		out.AthleteID = int64(id)
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return ParentViewSuccess{}, fmt.Errorf("parent_view_success: athleteId: %w", err)
		}
		out.AthleteID = n
	case int:
		out.AthleteID = int64(id)
	case int64:
		out.AthleteID = id
	default:
		return ParentViewSuccess{}, errors.New("parent_view_success: missing athleteId")
	}

	return out, nil
}

// ErrorReason returns the human-readable reason carried by an error message.
func ErrorReason(m Message) (string, bool) {
	if m.Type() != TypeError {
		return "", false
	}
	reason, ok := m["message"].(string)
	return reason, ok
}
