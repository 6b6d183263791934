package syncmsg

// Check carries a range digest, or no range at all for a clear
type Check struct {
	ID       int64  `json:"id"`
	Begin    string `json:"begin,omitempty"`
	End      string `json:"end,omitempty"`
	Tail     string `json:"tail,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

func NewGlobalDigest(id int64, begin, end, checksum string) *Message {
	return &Message{
		Component: ComponentSyscheck,
		Type:      MsgGlobalDigest,
		Data: &Check{
			ID:       id,
			Begin:    begin,
			End:      end,
			Checksum: checksum,
		},
	}
}

// NewClear tells the manager that the agent has no entries
func NewClear(id int64) *Message {
	return &Message{
		Component: ComponentSyscheck,
		Type:      MsgClear,
		Data:      &Check{ID: id},
	}
}

// NewDigestLeft covers the lower half of a split. tail is the first key
// of the upper half.
func NewDigestLeft(id int64, begin, end, tail, checksum string) *Message {
	return &Message{
		Component: ComponentSyscheck,
		Type:      MsgDigestLeft,
		Data: &Check{
			ID:       id,
			Begin:    begin,
			End:      end,
			Tail:     tail,
			Checksum: checksum,
		},
	}
}

func NewDigestRight(id int64, begin, end, checksum string) *Message {
	return &Message{
		Component: ComponentSyscheck,
		Type:      MsgDigestRight,
		Data: &Check{
			ID:       id,
			Begin:    begin,
			End:      end,
			Checksum: checksum,
		},
	}
}
