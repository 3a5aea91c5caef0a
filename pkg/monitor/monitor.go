package monitor

import "log/slog"

// Activity records the bot's ingest/recall/agent-turn pipeline as
// structured log lines. Every field here is attached as a log attribute so
// operators can grep a single event kind across a running instance.

func IngestedMessage(groupID, senderUserID int64, messageID int64) {
	slog.Info("anti_recall: ingested message", "group_id", groupID, "sender_user_id", senderUserID, "message_id", messageID)
}

func RecallDetected(groupID, operatorID, messageID int64) {
	slog.Info("anti_recall: recall detected", "group_id", groupID, "operator_id", operatorID, "message_id", messageID)
}

func RecallUncached(groupID, messageID int64) {
	slog.Debug("anti_recall: recall for uncached message, ignoring", "group_id", groupID, "message_id", messageID)
}

func RecallDelivered(groupID int64, targetCount int, archived bool) {
	slog.Info("anti_recall: recall delivered", "group_id", groupID, "targets", targetCount, "archived", archived)
}

func AgentTurnOpened(sessionID string, userID int64) {
	slog.Info("agent: session opened", "session_id", sessionID, "user_id", userID)
}

func AgentTurnProcessed(sessionID string, triggered bool) {
	slog.Info("agent: turn processed", "session_id", sessionID, "trigger_n8n", triggered)
}

func WebhookDispatched(sessionID string, err error) {
	if err != nil {
		slog.Warn("agent: webhook dispatch failed", "session_id", sessionID, "error", err)
		return
	}
	slog.Info("agent: webhook dispatched", "session_id", sessionID)
}

func SelfDeleteBatch(scopeID int64, deleted, scanned int) {
	slog.Info("recall: self-delete batch complete", "scope_id", scopeID, "deleted", deleted, "scanned", scanned)
}
