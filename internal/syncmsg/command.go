package syncmsg

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Commands the manager sends back to the agent
const (
	CmdChecksumFail = "checksum_fail"
	CmdNoData       = "no_data"
)

var (
	ErrNoArgument      = errors.New("command has no argument")
	ErrInvalidArgument = errors.New("invalid command argument")
)

// Command is an inbound manager command: "<name> <json body>".
// ID is always valid; Begin and End are only meaningful when HasRange.
type Command struct {
	Name     string
	ID       int64
	Begin    string
	End      string
	HasRange bool
}

type commandBody struct {
	ID    any `json:"id"`
	Begin any `json:"begin"`
	End   any `json:"end"`
}

// ParseCommand validates a payload once. It fails when the argument is
// missing, is not a JSON object, or has no numeric id.
func ParseCommand(payload string) (*Command, error) {
	name, arg, found := strings.Cut(payload, " ")
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrNoArgument, payload)
	}

	var body commandBody
	if err := jsonUnmarshal([]byte(arg), &body); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, arg)
	}

	id, ok := body.ID.(float64)
	if !ok || math.IsNaN(id) || math.IsInf(id, 0) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, arg)
	}

	cmd := &Command{Name: name, ID: int64(id)}
	begin, beginOK := body.Begin.(string)
	end, endOK := body.End.(string)
	if beginOK && endOK {
		cmd.Begin, cmd.End, cmd.HasRange = begin, end, true
	}
	return cmd, nil
}
