package antirecall

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wardkeeper/pkg/adapter"
	"wardkeeper/pkg/cache"
	"wardkeeper/pkg/config"
	"wardkeeper/pkg/monitor"
	"wardkeeper/pkg/onebot"
	"wardkeeper/pkg/segment"
)

// AlertSink mirrors operational failures to an optional secondary channel
// (C14). Engine works fine with a nil sink — every call site degrades to a
// log line through slog instead.
type AlertSink interface {
	Alert(ctx context.Context, message string)
}

// Engine implements the anti-recall ingest and reaction pipelines described
// in 4.6. It is gated by the plugin's enabled flag, monitor-group
// membership, and the adapter's identity.
type Engine struct {
	plugin  *Plugin
	cache   *cache.Cache
	adapter adapter.Adapter
	client  *onebot.Client
	system  *config.SystemConfigHolder
	alert   AlertSink
}

func NewEngine(plugin *Plugin, c *cache.Cache, a adapter.Adapter, client *onebot.Client, system *config.SystemConfigHolder, alert AlertSink) *Engine {
	return &Engine{plugin: plugin, cache: c, adapter: a, client: client, system: system, alert: alert}
}

func (e *Engine) gated(groupID int64) bool {
	if !e.plugin.Enabled() {
		return false
	}
	if !e.plugin.IsMonitored(groupID) {
		return false
	}
	if e.adapter.Identity() != adapter.IdentityOneBotV11 {
		return false
	}
	return true
}

// cacheResolver implements segment.Resolver against the recall cache,
// falling back to the gateway's get_msg when the quoted id isn't cached.
type cacheResolver struct {
	cache  *cache.Cache
	client *onebot.Client
	ctx    context.Context
}

func (r cacheResolver) Resolve(currentID, quotedID int64) (string, []segment.Segment, int, bool) {
	if cached, ok := r.cache.Get(quotedID); ok {
		offset, _ := r.cache.OffsetUp(currentID, quotedID)
		return cached.SenderDisplayName, cached.Segments, offset, true
	}
	msg, err := r.client.GetMsg(r.ctx, quotedID)
	if err != nil {
		return "", nil, 0, false
	}
	segs := segment.NormalizeContent(msg.Message)
	return msg.Sender.DisplayName(), segs, 0, true
}

// Ingest processes a group message event into the recall cache, per 4.6's
// ingest pipeline.
func (e *Engine) Ingest(ctx context.Context, evt onebot.MessageEvent, replySenderName string, replySegs []segment.Segment, hasReply bool) {
	if !e.gated(evt.GroupID) {
		return
	}

	segs := segment.NormalizeContent(evt.Message)

	if hasReply {
		prefix := segment.SummarizeReplyDirect(replySenderName, replySegs, 0)
		segs = append([]segment.Segment{prefix}, segs...)
	} else {
		resolver := cacheResolver{cache: e.cache, client: e.client, ctx: ctx}
		segs = segment.ExpandReplySegments(resolver, evt.MessageID, segs)
	}

	forwardIDs := segment.ExtractForwardIDs(segs)

	cached := cache.CachedMessage{
		MessageID:         evt.MessageID,
		GroupID:           evt.GroupID,
		SenderUserID:      evt.UserID,
		SenderDisplayName: evt.Sender.DisplayName(),
		Segments:          segs,
		ForwardIDs:        forwardIDs,
	}

	if len(forwardIDs) > 0 {
		if archivedID, ok := e.archive(ctx, evt); ok {
			cached.ArchivedMessageID = archivedID
			cached.HasArchivedID = true
		}
	}

	e.cache.Put(cached)
	monitor.IngestedMessage(evt.GroupID, evt.UserID, evt.MessageID)
}

// archive clones evt's message into the configured archive group and
// resolves the clone's id. Any failure along this chain yields (0,false);
// the ingest pipeline itself never fails because of it.
func (e *Engine) archive(ctx context.Context, evt onebot.MessageEvent) (int64, bool) {
	archiveGroupID, ok := e.plugin.ArchiveGroupID()
	if !ok || archiveGroupID == evt.GroupID {
		return 0, false
	}

	if err := e.adapter.ForwardToGroup(ctx, archiveGroupID, evt.MessageID); err != nil {
		slog.Warn("anti-recall: archive forward failed", "group_id", evt.GroupID, "message_id", evt.MessageID, "error", err)
		e.alertf(ctx, "archive forward failed for group %d message %d: %v", evt.GroupID, evt.MessageID, err)
		return 0, false
	}

	time.Sleep(e.system.Get().ArchiveSettleDelay())

	id, ok := e.adapter.FetchGroupLatestMessageID(ctx, archiveGroupID)
	if !ok {
		slog.Warn("anti-recall: could not resolve archived message id", "archive_group_id", archiveGroupID)
		return 0, false
	}
	return id, true
}

// React runs the reaction pipeline for a group recall notice, per 4.6.
func (e *Engine) React(ctx context.Context, notice onebot.GroupRecallNotice) {
	if !e.gated(notice.GroupID) {
		return
	}

	cached, ok := e.cache.Get(notice.MessageID)
	if !ok {
		monitor.RecallUncached(notice.GroupID, notice.MessageID)
		return
	}
	defer e.cache.Remove(notice.MessageID)
	monitor.RecallDetected(notice.GroupID, notice.OperatorID, notice.MessageID)

	header := fmt.Sprintf("群号: %d\n发送者: %s(%d)\n撤回消息ID: %d\n",
		notice.GroupID, cached.SenderDisplayName, cached.SenderUserID, notice.MessageID)

	targets := e.plugin.TargetUserIDs()
	pace := e.system.Get().ForwardPaceDelay()

	if len(cached.ForwardIDs) > 0 {
		archiveGroupID, hasArchive := e.plugin.ArchiveGroupID()
		if !hasArchive || !cached.HasArchivedID {
			return
		}
		for _, userID := range targets {
			e.deliverArchived(ctx, userID, header, cached.ArchivedMessageID, archiveGroupID, pace)
		}
		monitor.RecallDelivered(notice.GroupID, len(targets), true)
		return
	}

	for _, userID := range targets {
		e.deliverPlain(ctx, userID, notice.SelfID, header, cached)
	}
	monitor.RecallDelivered(notice.GroupID, len(targets), false)
}

func (e *Engine) deliverArchived(ctx context.Context, userID int64, header string, archivedMessageID, archiveGroupID int64, pace time.Duration) {
	if _, err := e.client.SendPrivateMsg(ctx, userID, segment.Message{segment.Text(header)}); err != nil {
		slog.Warn("anti-recall: header send failed", "user_id", userID, "error", err)
		return
	}
	time.Sleep(pace)

	if err := e.adapter.ForwardToPeer(ctx, userID, archivedMessageID); err != nil {
		slog.Warn("anti-recall: archived forward-to-peer failed", "user_id", userID, "archived_message_id", archivedMessageID, "error", err)
		e.alertf(ctx, "forward_friend_single_msg failed for user %d: %v", userID, err)
		return
	}
	time.Sleep(pace)

	// best-effort cleanup of the archived copy, keeps the archive group tidy
	if err := e.client.DeleteMsg(ctx, archivedMessageID); err != nil {
		slog.Warn("anti-recall: archive cleanup failed", "archive_group_id", archiveGroupID, "archived_message_id", archivedMessageID, "error", err)
	}
}

func (e *Engine) deliverPlain(ctx context.Context, userID, selfID int64, header string, cached cache.CachedMessage) {
	nodes := []onebot.ForwardNode{
		{UserID: selfID, Nickname: "防撤回", Content: []segment.Segment{segment.Text(header)}},
		{UserID: cached.SenderUserID, Nickname: cached.SenderDisplayName, Content: cached.Segments},
	}
	if _, err := e.client.SendPrivateForwardMsg(ctx, userID, nodes); err != nil {
		slog.Warn("anti-recall: forward card delivery failed, degrading to text", "user_id", userID, "error", err)
		fallback := header + "\n" + strings.TrimSpace(segment.ToCQString(cached.Segments))
		if _, sendErr := e.client.SendPrivateMsg(ctx, userID, segment.Message{segment.Text(fallback)}); sendErr != nil {
			slog.Warn("anti-recall: plain fallback delivery failed", "user_id", userID, "error", sendErr)
			e.alertf(ctx, "all delivery paths failed for user %d: %v / %v", userID, err, sendErr)
		}
	}
}

func (e *Engine) alertf(ctx context.Context, format string, args ...any) {
	if e.alert == nil {
		return
	}
	e.alert.Alert(ctx, fmt.Sprintf(format, args...))
}
