// Package adapter abstracts the platform-specific capability set the
// anti-recall engine needs (C3), so the engine never talks to a gateway
// client directly.
package adapter

import (
	"context"
	"errors"
	"log/slog"

	"wardkeeper/pkg/onebot"
)

// ErrUnsupportedAdapter is raised when the connected platform does not
// support a requested capability. Callers turn it into a silent no-op or a
// user-facing message depending on context — it is never itself fatal.
var ErrUnsupportedAdapter = errors.New("adapter: unsupported platform")

// Identity is the adapter-identity string the router uses to select a
// capability set.
type Identity string

const IdentityOneBotV11 Identity = "onebot_v11"

// Adapter is the capability set the anti-recall engine depends on.
type Adapter interface {
	Identity() Identity
	ExtractAudioBase64(ctx context.Context, file string) string
	ForwardToPeer(ctx context.Context, userID, messageID int64) error
	ForwardToGroup(ctx context.Context, groupID, messageID int64) error
	FetchGroupLatestMessageID(ctx context.Context, groupID int64) (int64, bool)
}

// OneBotV11 implements Adapter over a live onebot.Client.
type OneBotV11 struct {
	client *onebot.Client
}

func NewOneBotV11(client *onebot.Client) *OneBotV11 {
	return &OneBotV11{client: client}
}

func (a *OneBotV11) Identity() Identity { return IdentityOneBotV11 }

// ExtractAudioBase64 fetches a voice segment's decoded audio as mp3,
// returning an empty string on any failure — extraction is best-effort and
// never raises.
func (a *OneBotV11) ExtractAudioBase64(ctx context.Context, file string) string {
	data, err := a.client.GetRecord(ctx, file)
	if err != nil {
		slog.Warn("voice extraction failed", "file", file, "error", err)
		return ""
	}
	return data
}

func (a *OneBotV11) ForwardToPeer(ctx context.Context, userID, messageID int64) error {
	return a.client.ForwardFriendSingleMsg(ctx, userID, messageID)
}

func (a *OneBotV11) ForwardToGroup(ctx context.Context, groupID, messageID int64) error {
	return a.client.ForwardGroupSingleMsg(ctx, groupID, messageID)
}

// FetchGroupLatestMessageID asks the gateway for the single most recent
// message in groupID and extracts its id, returning false if the gateway
// call fails or returns nothing.
func (a *OneBotV11) FetchGroupLatestMessageID(ctx context.Context, groupID int64) (int64, bool) {
	msgs, err := a.client.GetGroupMsgHistory(ctx, groupID, 0, 1, true)
	if err != nil || len(msgs) == 0 {
		return 0, false
	}
	return msgs[0].MessageID, true
}
