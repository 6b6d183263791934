package syncmsg

import "fmt"

type MessageType uint16

const (
	MsgGlobalDigest MessageType = iota
	MsgClear
	MsgDigestLeft
	MsgDigestRight
	MsgState
)

var messageTypeNames = map[MessageType]string{
	MsgGlobalDigest: "integrity_check_global",
	MsgClear:        "integrity_clear",
	MsgDigestLeft:   "integrity_check_left",
	MsgDigestRight:  "integrity_check_right",
	MsgState:        "state",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("???(%d)", t)
}

func (t MessageType) MarshalText() ([]byte, error) {
	name, ok := messageTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %d", t)
	}
	return []byte(name), nil
}

func (t *MessageType) UnmarshalText(text []byte) error {
	for typ, name := range messageTypeNames {
		if name == string(text) {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %q", text)
}
