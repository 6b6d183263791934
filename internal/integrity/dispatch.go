package integrity

import (
	"context"
	"log/slog"

	"github.com/openmined/fimsync/internal/syncmsg"
)

// commandLabel keeps the command label of commandsTotal bounded: names come
// from the peer.
func commandLabel(name string) string {
	switch name {
	case syncmsg.CmdChecksumFail, syncmsg.CmdNoData:
		return name
	default:
		return "other"
	}
}

// dispatch handles one inbound payload. Nothing escapes: malformed or
// stale commands are logged and dropped.
func (e *Engine) dispatch(ctx context.Context, payload string) {
	cmd, err := syncmsg.ParseCommand(payload)
	if err != nil {
		slog.Debug("sync dispatch discarded", "payload", payload, "error", err)
		commandsTotal.WithLabelValues("", resultInvalid).Inc()
		return
	}

	label := commandLabel(cmd.Name)
	e.session.lastMessage = e.clock.Now()

	// A reply to an older round lowers roundID, so replies to the current
	// announcement are dropped as stale until the next global digest.
	switch {
	case cmd.ID < e.session.roundID:
		slog.Debug("sync dispatch rebase", "from", e.session.roundID, "to", cmd.ID)
		e.session.roundID = cmd.ID
		commandsTotal.WithLabelValues(label, resultRebased).Inc()
	case cmd.ID > e.session.roundID:
		slog.Debug("sync dispatch stale", "command", cmd.Name, "id", cmd.ID, "round", e.session.roundID)
		commandsTotal.WithLabelValues(label, resultStale).Inc()
		e.publishSession()
		return
	}
	e.publishSession()

	if label == "other" {
		slog.Debug("sync dispatch unknown command", "command", cmd.Name)
		commandsTotal.WithLabelValues(label, resultUnknown).Inc()
		return
	}

	if !cmd.HasRange {
		slog.Debug("sync dispatch missing range", "command", cmd.Name, "id", cmd.ID)
		commandsTotal.WithLabelValues(label, resultInvalid).Inc()
		return
	}

	switch cmd.Name {
	case syncmsg.CmdChecksumFail:
		e.checksumSplit(ctx, cmd.Begin, cmd.End, cmd.ID)
	case syncmsg.CmdNoData:
		e.sendList(ctx, cmd.Begin, cmd.End)
	}
	commandsTotal.WithLabelValues(label, resultProcessed).Inc()
}
