package onebot

import (
	"context"

	"wardkeeper/pkg/segment"
)

// forwardNode is the {"type":"node","data":{...}} shape required by
// send_{private,group}_forward_msg.
type forwardNode struct {
	Type string          `json:"type"`
	Data forwardNodeData `json:"data"`
}

type forwardNodeData struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Content  string `json:"content"`
}

// ForwardNode is the caller-facing description of one forwarded message;
// buildForwardNodes wraps a slice of these into the wire shape above.
type ForwardNode struct {
	UserID   int64
	Nickname string
	Content  []segment.Segment
}

func buildForwardNodes(nodes []ForwardNode) []forwardNode {
	out := make([]forwardNode, len(nodes))
	for i, n := range nodes {
		out[i] = forwardNode{
			Type: "node",
			Data: forwardNodeData{
				UserID:   n.UserID,
				Nickname: n.Nickname,
				Content:  segment.ToCQString(n.Content),
			},
		}
	}
	return out
}

func toCQArray(segs []segment.Segment) []map[string]any {
	out := make([]map[string]any, len(segs))
	for i, s := range segs {
		out[i] = map[string]any{"type": string(s.Kind), "data": s.Attrs}
	}
	return out
}

type msgIDResult struct {
	MessageID int64 `json:"message_id"`
}

// SendPrivateMsg sends a plain message to a private chat and returns the
// resulting message id.
func (c *Client) SendPrivateMsg(ctx context.Context, userID int64, msg []segment.Segment) (int64, error) {
	var out msgIDResult
	err := c.Call(ctx, "send_private_msg", map[string]any{
		"user_id": userID,
		"message": toCQArray(segment.NormalizeSendable(msg)),
	}, &out)
	return out.MessageID, err
}

// SendGroupMsg sends a plain message to a group and returns the resulting
// message id.
func (c *Client) SendGroupMsg(ctx context.Context, groupID int64, msg []segment.Segment) (int64, error) {
	var out msgIDResult
	err := c.Call(ctx, "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  toCQArray(segment.NormalizeSendable(msg)),
	}, &out)
	return out.MessageID, err
}

// SendPrivateForwardMsg delivers a forward-node card to a private chat.
func (c *Client) SendPrivateForwardMsg(ctx context.Context, userID int64, nodes []ForwardNode) (int64, error) {
	var out msgIDResult
	err := c.Call(ctx, "send_private_forward_msg", map[string]any{
		"user_id": userID,
		"messages": buildForwardNodes(nodes),
	}, &out)
	return out.MessageID, err
}

// SendGroupForwardMsg delivers a forward-node card to a group.
func (c *Client) SendGroupForwardMsg(ctx context.Context, groupID int64, nodes []ForwardNode) (int64, error) {
	var out msgIDResult
	err := c.Call(ctx, "send_group_forward_msg", map[string]any{
		"group_id": groupID,
		"messages": buildForwardNodes(nodes),
	}, &out)
	return out.MessageID, err
}

// ForwardFriendSingleMsg re-forwards a single already-sent message to a
// friend, preserving its original forward-card rendering.
func (c *Client) ForwardFriendSingleMsg(ctx context.Context, userID, messageID int64) error {
	return c.Call(ctx, "forward_friend_single_msg", map[string]any{
		"user_id":    userID,
		"message_id": messageID,
	}, nil)
}

// ForwardGroupSingleMsg re-forwards a single already-sent message to a
// group, preserving its original forward-card rendering.
func (c *Client) ForwardGroupSingleMsg(ctx context.Context, groupID, messageID int64) error {
	return c.Call(ctx, "forward_group_single_msg", map[string]any{
		"group_id":   groupID,
		"message_id": messageID,
	}, nil)
}

// GetMsgResult is get_msg's response shape, trimmed to the fields this
// engine consumes.
type GetMsgResult struct {
	MessageID  int64  `json:"message_id"`
	RealID     int64  `json:"real_id"`
	Sender     Sender `json:"sender"`
	Time       int64  `json:"time"`
	Message    any    `json:"message"`
	RawMessage string `json:"raw_message"`
}

// GetMsg fetches a single message by id.
func (c *Client) GetMsg(ctx context.Context, messageID int64) (GetMsgResult, error) {
	var out GetMsgResult
	err := c.Call(ctx, "get_msg", map[string]any{"message_id": messageID}, &out)
	return out, err
}

// GetForwardMsg resolves an opaque forward id into its constituent
// messages.
func (c *Client) GetForwardMsg(ctx context.Context, forwardID string) ([]GetMsgResult, error) {
	var out struct {
		Messages []GetMsgResult `json:"messages"`
	}
	err := c.Call(ctx, "get_forward_msg", map[string]any{"id": forwardID}, &out)
	return out.Messages, err
}

// GetGroupMsgHistory fetches recent group history up to and including
// messageSeq (0 means "latest"), in reverseOrder (newest-first) when asked.
func (c *Client) GetGroupMsgHistory(ctx context.Context, groupID, messageSeq int64, count int, reverseOrder bool) ([]GetMsgResult, error) {
	var out struct {
		Messages []GetMsgResult `json:"messages"`
	}
	params := map[string]any{"group_id": groupID, "count": count, "reverseOrder": reverseOrder}
	if messageSeq > 0 {
		params["message_seq"] = messageSeq
	}
	err := c.Call(ctx, "get_group_msg_history", params, &out)
	return out.Messages, err
}

// GetFriendMsgHistory fetches recent private history with userID up to and
// including messageSeq (0 means "latest"), in reverseOrder (newest-first)
// when asked.
func (c *Client) GetFriendMsgHistory(ctx context.Context, userID, messageSeq int64, count int, reverseOrder bool) ([]GetMsgResult, error) {
	var out struct {
		Messages []GetMsgResult `json:"messages"`
	}
	params := map[string]any{"user_id": userID, "count": count, "reverseOrder": reverseOrder}
	if messageSeq > 0 {
		params["message_seq"] = messageSeq
	}
	err := c.Call(ctx, "get_friend_msg_history", params, &out)
	return out.Messages, err
}

// GetRecord fetches a voice segment's decoded audio, requesting mp3
// transcoding from the gateway and returning its base64 payload.
func (c *Client) GetRecord(ctx context.Context, file string) (string, error) {
	var out struct {
		File string `json:"base64"`
	}
	err := c.Call(ctx, "get_record", map[string]any{
		"file":       file,
		"out_format": "mp3",
	}, &out)
	return out.File, err
}

// DeleteMsg recalls (deletes) a bot-owned message.
func (c *Client) DeleteMsg(ctx context.Context, messageID int64) error {
	return c.Call(ctx, "delete_msg", map[string]any{"message_id": messageID}, nil)
}
