package integrity

import "time"

// session is the logical clock of the sync protocol. It is only touched by
// the engine goroutine.
type session struct {
	// roundID is the id of the last global digest, possibly lowered by an
	// older manager reply
	roundID int64
	// lastMessage is when the last well formed command arrived
	lastMessage time.Time
	// roundStart is when the current global digest went out
	roundStart time.Time
}

// deadline is the end of the current wait: the sync interval after the
// round started, pushed back while the manager keeps talking.
func (s *session) deadline(interval, responseTimeout time.Duration) time.Time {
	d := s.roundStart.Add(interval)
	if s.lastMessage.IsZero() {
		return d
	}
	if r := s.lastMessage.Add(responseTimeout); r.After(d) {
		return r
	}
	return d
}
