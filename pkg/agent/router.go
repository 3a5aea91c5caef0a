package agent

import (
	"context"
	"fmt"
	"log/slog"

	"wardkeeper/pkg/command"
	"wardkeeper/pkg/llm"
	"wardkeeper/pkg/monitor"
	"wardkeeper/pkg/onebot"
	"wardkeeper/pkg/segment"
	"wardkeeper/pkg/webhook"
)

// openingReply is the literal text sent back when `/a` is invoked with no
// argument — the documented quirk from 4.7: the handler replies "start"
// and waits for the next private message to serve as the opening turn.
const openingReply = "start"

// AlertSink mirrors dispatch failures to an optional secondary channel
// (C14). Router works fine with a nil sink.
type AlertSink interface {
	Alert(ctx context.Context, message string)
}

// Router is the agent session engine's command handler and message
// interceptor (C7). Both entry points are restricted to superusers and to
// private-chat events only.
type Router struct {
	store       *SessionStore
	llmClient   llm.Client
	webhook     *webhook.Client
	gateway     *onebot.Client
	superusers  command.Superusers
	audioLookup func(file string) string
	alert       AlertSink
}

func NewRouter(store *SessionStore, llmClient llm.Client, webhookClient *webhook.Client, gateway *onebot.Client, superusers command.Superusers, audioLookup func(file string) string, alert AlertSink) *Router {
	return &Router{
		store:       store,
		llmClient:   llmClient,
		webhook:     webhookClient,
		gateway:     gateway,
		superusers:  superusers,
		audioLookup: audioLookup,
		alert:       alert,
	}
}

// HandleOpen implements `a [opening_text]`. It creates a session if none is
// live for the caller and, when openingText is non-empty, treats it as the
// first user turn and processes it immediately.
func (r *Router) HandleOpen(ctx context.Context, selfID, userID int64, openingText string) {
	if !r.superusers.IsSuperuser(userID) {
		return
	}

	key := Key(selfID, userID)
	sess, ok := r.store.Get(key)
	if !ok {
		sess = r.store.Create(key)
		monitor.AgentTurnOpened(sess.SessionID, userID)
	}

	if openingText == "" {
		r.send(ctx, userID, openingReply)
		return
	}

	sess.AppendTurn(llm.ChatMessage{Role: llm.RoleUser, Content: []llm.Content{llm.TextContent(openingText)}})
	r.processTurn(ctx, key, sess, userID)
}

// Intercept claims an inbound private message if its sender has a live
// session, structuring it into a turn and running it to completion. It
// returns false (unclaimed) when there is no live session or the sender is
// not a superuser, letting command matching proceed instead.
func (r *Router) Intercept(ctx context.Context, selfID, userID int64, segs []segment.Segment) bool {
	if !r.superusers.IsSuperuser(userID) {
		return false
	}

	key := Key(selfID, userID)
	sess, ok := r.store.Get(key)
	if !ok {
		return false
	}

	content := ExtractTurn(segs, r.audioLookup)
	if len(content) == 0 {
		return true
	}

	sess.AppendTurn(llm.ChatMessage{Role: llm.RoleUser, Content: content})
	r.processTurn(ctx, key, sess, userID)
	return true
}

func (r *Router) processTurn(ctx context.Context, key string, sess *AgentSession, userID int64) {
	resp, err := r.llmClient.Chat(ctx, sess.Turns)
	if err != nil {
		slog.Warn("agent: llm call failed", "session_id", sess.SessionID, "error", err)
		r.send(ctx, userID, "抱歉，处理你的请求时出错了，请稍后再试。")
		return
	}

	monitor.AgentTurnProcessed(sess.SessionID, resp.TriggerN8N)

	if !resp.TriggerN8N {
		sess.AppendTurn(llm.ChatMessage{Role: llm.RoleAssistant, Content: []llm.Content{llm.TextContent(resp.Response)}})
		r.send(ctx, userID, resp.Response)
		return
	}

	dispatchErr := r.webhook.Dispatch(ctx, resp.Payload, sess.SessionID)
	monitor.WebhookDispatched(sess.SessionID, dispatchErr)
	if dispatchErr != nil {
		slog.Warn("agent: webhook dispatch failed", "session_id", sess.SessionID, "error", dispatchErr)
		r.alertf(ctx, "webhook dispatch failed for session %s: %v", sess.SessionID, dispatchErr)
		r.send(ctx, userID, "需求提交失败，请重试："+dispatchErr.Error())
		return
	}

	r.store.Pop(key)
	if resp.Response != "" {
		r.send(ctx, userID, resp.Response)
	}
}

func (r *Router) send(ctx context.Context, userID int64, text string) {
	if r.gateway == nil {
		return
	}
	if _, err := r.gateway.SendPrivateMsg(ctx, userID, segment.Message{segment.Text(text)}); err != nil {
		slog.Warn("agent: reply send failed", "user_id", userID, "error", err)
	}
}

func (r *Router) alertf(ctx context.Context, format string, args ...any) {
	if r.alert == nil {
		return
	}
	r.alert.Alert(ctx, fmt.Sprintf(format, args...))
}
