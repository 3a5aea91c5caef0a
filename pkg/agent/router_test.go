package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"wardkeeper/pkg/command"
	"wardkeeper/pkg/llm"
	"wardkeeper/pkg/segment"
	"wardkeeper/pkg/webhook"
)

type fakeLLMClient struct {
	resp llm.AiResponse
	err  error
}

func (f fakeLLMClient) Chat(ctx context.Context, turns []llm.ChatMessage) (llm.AiResponse, error) {
	return f.resp, f.err
}
func (f fakeLLMClient) IsTransientError(err error) bool { return false }

func newTestSuperusers(ids ...int64) command.Superusers {
	set := map[int64]struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return command.NewSuperusers(set)
}

func TestInterceptRejectsNonSuperuser(t *testing.T) {
	store := NewSessionStore()
	store.Create(Key(1, 2))
	r := NewRouter(store, fakeLLMClient{}, nil, nil, newTestSuperusers(999), nil, nil)

	claimed := r.Intercept(context.Background(), 1, 2, []segment.Segment{segment.Text("hi")})
	if claimed {
		t.Fatalf("expected non-superuser message to go unclaimed")
	}
}

func TestInterceptUnclaimedWithoutLiveSession(t *testing.T) {
	store := NewSessionStore()
	r := NewRouter(store, fakeLLMClient{}, nil, nil, newTestSuperusers(2), nil, nil)

	claimed := r.Intercept(context.Background(), 1, 2, []segment.Segment{segment.Text("hi")})
	if claimed {
		t.Fatalf("expected no live session to go unclaimed")
	}
}

func TestProcessTurnDispatchesOnTrigger(t *testing.T) {
	var posted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posted = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewSessionStore()
	key := Key(1, 2)
	store.Create(key)

	whClient := webhook.NewClient(webhook.Config{BaseURL: srv.URL, Path: "/hook"})
	llmClient := fakeLLMClient{resp: llm.AiResponse{TriggerN8N: true, Payload: "do the thing", Response: "ok, on it"}}
	router := NewRouter(store, llmClient, whClient, nil, newTestSuperusers(2), nil, nil)

	sess, _ := store.Get(key)
	sess.AppendTurn(llm.ChatMessage{Role: llm.RoleUser, Content: []llm.Content{llm.TextContent("do something")}})
	router.processTurn(context.Background(), key, sess, 2)

	if !posted {
		t.Fatalf("expected webhook to be posted")
	}
	if store.Has(key) {
		t.Fatalf("expected session to be popped after successful dispatch")
	}
}

func TestProcessTurnKeepsSessionOnWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewSessionStore()
	key := Key(1, 2)
	store.Create(key)

	whClient := webhook.NewClient(webhook.Config{BaseURL: srv.URL, Path: "/hook"})
	llmClient := fakeLLMClient{resp: llm.AiResponse{TriggerN8N: true, Payload: "do the thing"}}
	router := NewRouter(store, llmClient, whClient, nil, newTestSuperusers(2), nil, nil)

	sess, _ := store.Get(key)
	router.processTurn(context.Background(), key, sess, 2)

	if !store.Has(key) {
		t.Fatalf("expected session to remain open after webhook failure")
	}
}

func TestProcessTurnClarificationContinuesSession(t *testing.T) {
	store := NewSessionStore()
	key := Key(1, 2)
	store.Create(key)

	llmClient := fakeLLMClient{resp: llm.AiResponse{TriggerN8N: false, Response: "能具体说说吗？"}}
	router := NewRouter(store, llmClient, nil, nil, newTestSuperusers(2), nil, nil)

	sess, _ := store.Get(key)
	router.processTurn(context.Background(), key, sess, 2)

	if !store.Has(key) {
		t.Fatalf("expected session to remain open on clarification")
	}
	if len(sess.Turns) != 1 || sess.Turns[0].Role != llm.RoleAssistant {
		t.Fatalf("expected an assistant turn appended, got %+v", sess.Turns)
	}
}
