// Package recall implements the self-delete utility (C10): `recall <count>
// [group_id]` walks recent history and deletes the bot's own messages.
package recall

import (
	"context"
	"fmt"
	"time"

	"wardkeeper/pkg/config"
	"wardkeeper/pkg/monitor"
	"wardkeeper/pkg/onebot"
)

// Scope pins the walk to either a group or a private peer. GroupID == 0
// means the private branch applies to PeerUserID.
type Scope struct {
	GroupID    int64
	PeerUserID int64
}

func (s Scope) id() int64 {
	if s.GroupID != 0 {
		return s.GroupID
	}
	return s.PeerUserID
}

// Walker deletes the bot's own recent sends by paging backward through
// history in growing batches, stopping at the first message older than the
// configured expiry window.
type Walker struct {
	client *onebot.Client
	system *config.SystemConfigHolder
}

func NewWalker(client *onebot.Client, system *config.SystemConfigHolder) *Walker {
	return &Walker{client: client, system: system}
}

// SelfDelete collects up to count of the bot's own recent message ids in
// scope and deletes them one at a time, pacing between calls.
func (w *Walker) SelfDelete(ctx context.Context, selfID int64, scope Scope, count int) (deleted, scanned int, err error) {
	if count <= 0 {
		return 0, 0, nil
	}

	sys := w.system.Get()
	expiry := sys.SelfDeleteExpiry()

	var ids []int64
	var cursor int64 // 0 means "start from latest"
	remaining := count

loop:
	for batch := 0; batch < sys.SelfDeleteMaxBatches && remaining > 0; batch++ {
		batchSize := (batch + 1) * count

		msgs, ferr := w.fetch(ctx, scope, cursor, batchSize)
		if ferr != nil {
			return 0, scanned, fmt.Errorf("recall: fetch history: %w", ferr)
		}
		if len(msgs) == 0 {
			break
		}

		for _, m := range msgs {
			scanned++

			if m.Sender.UserID != selfID || m.RawMessage == "" {
				continue
			}
			if time.Since(time.Unix(m.Time, 0)) > expiry {
				break loop
			}

			ids = append(ids, m.MessageID)
			remaining--
			if remaining == 0 {
				break loop
			}
		}

		cursor = msgs[len(msgs)-1].MessageID - 1
		if len(msgs) < batchSize {
			break
		}
	}

	for _, id := range ids {
		if derr := w.client.DeleteMsg(ctx, id); derr != nil {
			continue
		}
		deleted++
		time.Sleep(sys.SelfDeletePaceDelay())
	}

	monitor.SelfDeleteBatch(scope.id(), deleted, scanned)
	return deleted, scanned, nil
}

func (w *Walker) fetch(ctx context.Context, scope Scope, cursor int64, count int) ([]onebot.GetMsgResult, error) {
	if scope.GroupID != 0 {
		return w.client.GetGroupMsgHistory(ctx, scope.GroupID, cursor, count, true)
	}
	return w.client.GetFriendMsgHistory(ctx, scope.PeerUserID, cursor, count, true)
}
