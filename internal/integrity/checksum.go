package integrity

import (
	"context"
	"log/slog"

	"github.com/openmined/fimsync/internal/fimstore"
	"github.com/openmined/fimsync/internal/syncmsg"
)

// syncChecksum starts a new round and announces the global digest, or a
// clear when there is nothing to announce.
func (e *Engine) syncChecksum(ctx context.Context) {
	summary, err := GlobalDigest(e.store)

	e.session.roundID = e.clock.Now().Unix()
	e.session.roundStart = e.clock.Now()
	e.publishSession()
	roundsTotal.Inc()

	if err != nil {
		slog.Error("sync global digest", "error", err)
		return
	}

	if summary.Count == 0 {
		slog.Debug("sync global digest empty, sending clear")
		e.send(ctx, syncmsg.NewClear(0))
		return
	}

	slog.Debug("sync global digest", "id", e.session.roundID, "entries", summary.Count, "begin", summary.Begin, "end", summary.End)
	e.send(ctx, syncmsg.NewGlobalDigest(e.session.roundID, summary.Begin, summary.End, summary.Checksum))
}

// checksumSplit answers a checksum_fail for [begin, end]. One entry is sent
// as its full state, more are split in two halves each with its own digest.
func (e *Engine) checksumSplit(ctx context.Context, begin, end string, id int64) {
	var out []*syncmsg.Message

	e.store.Lock()
	keys := e.store.Range(begin, end)
	n := len(keys)

	switch {
	case n == 0:
	case n == 1:
		if entry, ok := e.store.Get(keys[0]); ok {
			out = append(out, stateMessage(entry))
		} else {
			slog.Error("sync checksum split", "begin", begin, "end", end, "error", ErrEntryVanished)
		}
	default:
		m := n / 2
		left, errLeft := rangeDigest(e.store, keys[:m])
		right, errRight := rangeDigest(e.store, keys[m:])
		if errLeft != nil || errRight != nil {
			slog.Error("sync checksum split", "begin", begin, "end", end, "left", errLeft, "right", errRight)
			break
		}
		out = append(out,
			syncmsg.NewDigestLeft(id, keys[0], keys[m-1], keys[m], left),
			syncmsg.NewDigestRight(id, keys[m], keys[n-1], right),
		)
	}
	e.store.Unlock()

	splitSize.Observe(float64(n))
	if n == 0 {
		slog.Debug("sync checksum split empty range", "begin", begin, "end", end)
	}

	for _, msg := range out {
		e.send(ctx, msg)
	}
}

// sendList dumps the full state of every entry in [begin, end]. The lock is
// released between entries so scans are not starved by a large dump.
func (e *Engine) sendList(ctx context.Context, begin, end string) {
	e.store.Lock()
	keys := e.store.Range(begin, end)
	e.store.Unlock()

	slog.Debug("sync send list", "begin", begin, "end", end, "entries", len(keys))

	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}

		e.store.Lock()
		entry, ok := e.store.Get(key)
		var msg *syncmsg.Message
		if ok {
			msg = stateMessage(entry)
		}
		e.store.Unlock()

		if !ok {
			slog.Debug("sync send list entry gone", "path", key)
			continue
		}
		e.send(ctx, msg)
	}
}

func stateMessage(e *fimstore.Entry) *syncmsg.Message {
	return syncmsg.NewState(e.Path, e.LastEvent, syncmsg.Attributes{
		Type:       e.Type,
		Size:       e.Size,
		Perm:       e.Perm,
		UID:        e.UID,
		GID:        e.GID,
		UserName:   e.UserName,
		GroupName:  e.GroupName,
		Inode:      e.Inode,
		MTime:      e.MTime,
		HashMD5:    e.HashMD5,
		HashSHA1:   e.HashSHA1,
		HashSHA256: e.HashSHA256,
		Checksum:   e.Checksum,
	})
}
