// Package onebot implements the gateway client (C11): a persistent
// WebSocket connection to a OneBot V11-compliant implementation, carrying
// both inbound events and outbound action calls correlated by echo id.
package onebot

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PostType values recognized on the inbound event stream.
const (
	PostTypeMessage      = "message"
	PostTypeNotice       = "notice"
	PostTypeMetaEvent    = "meta_event"
	MessageTypePrivate   = "private"
	MessageTypeGroup     = "group"
	NoticeTypeGroupRecall = "group_recall"
)

// Sender is the shape OneBot V11 attaches to message events; field
// presence varies by implementation, hence the segment package's
// key-fallback extraction helpers operate on the raw map form instead.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
}

// DisplayName prefers the group card, falling back to the nickname.
func (s Sender) DisplayName() string {
	if s.Card != "" {
		return s.Card
	}
	return s.Nickname
}

// Event is the generic envelope every inbound frame is first decoded into,
// so the dispatcher can branch on PostType/MessageType/NoticeType before
// committing to a concrete event shape.
type Event struct {
	Time        int64           `json:"time"`
	SelfID      int64           `json:"self_id"`
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type,omitempty"`
	NoticeType  string          `json:"notice_type,omitempty"`
	raw         jsoniter.RawMessage
}

// Decode re-parses the event's raw frame into a concrete shape (MessageEvent,
// GroupRecallNotice, ...) once the dispatcher has branched on PostType.
func (e Event) Decode(out any) error {
	return json.Unmarshal(e.raw, out)
}

// MessageEvent is a group or private message event.
type MessageEvent struct {
	Time        int64          `json:"time"`
	SelfID      int64          `json:"self_id"`
	MessageType string         `json:"message_type"`
	MessageID   int64          `json:"message_id"`
	UserID      int64          `json:"user_id"`
	GroupID     int64          `json:"group_id"`
	RawMessage  string         `json:"raw_message"`
	Message     any            `json:"message"`
	Sender      Sender         `json:"sender"`
}

// GroupRecallNotice is a notice.group_recall event.
type GroupRecallNotice struct {
	Time       int64 `json:"time"`
	SelfID     int64 `json:"self_id"`
	GroupID    int64 `json:"group_id"`
	UserID     int64 `json:"user_id"`
	OperatorID int64 `json:"operator_id"`
	MessageID  int64 `json:"message_id"`
}

// actionRequest is the outbound call envelope: {"action":..,"params":..,"echo":..}.
type actionRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// actionResponse is the inbound reply envelope correlated by Echo.
type actionResponse struct {
	Status  string              `json:"status"`
	RetCode int                 `json:"retcode"`
	Data    jsoniter.RawMessage `json:"data"`
	Echo    string              `json:"echo"`
	Msg     string              `json:"msg"`
	Wording string              `json:"wording"`
}
