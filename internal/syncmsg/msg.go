package syncmsg

import (
	"encoding/json"
	"fmt"
)

// ComponentSyscheck tags every message of the file integrity namespace
const ComponentSyscheck = "syscheck"

// Message is one outbound synchronization message
type Message struct {
	Component string      `json:"component"`
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
}

// Marshal renders the message as its single line wire payload
func (m *Message) Marshal() (string, error) {
	data, err := jsonMarshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", m.Type, err)
	}
	return string(data), nil
}

// UnmarshalJSON decodes Data into the struct matching Type
func (m *Message) UnmarshalJSON(data []byte) error {
	type tempMessage struct {
		Component string          `json:"component"`
		Type      MessageType     `json:"type"`
		Data      json.RawMessage `json:"data"`
	}

	var temp tempMessage
	if err := jsonUnmarshal(data, &temp); err != nil {
		return err
	}

	m.Component = temp.Component
	m.Type = temp.Type

	switch m.Type {
	case MsgGlobalDigest, MsgClear, MsgDigestLeft, MsgDigestRight:
		var check Check
		if err := jsonUnmarshal(temp.Data, &check); err != nil {
			return err
		}
		m.Data = check
	case MsgState:
		var state State
		if err := jsonUnmarshal(temp.Data, &state); err != nil {
			return err
		}
		m.Data = state
	default:
		return fmt.Errorf("unknown message type: %d", m.Type)
	}

	return nil
}

// Parse decodes a wire payload
func Parse(payload string) (*Message, error) {
	var msg Message
	if err := jsonUnmarshal([]byte(payload), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
