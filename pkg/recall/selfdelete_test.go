package recall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"wardkeeper/pkg/config"
	"wardkeeper/pkg/onebot"
)

var testJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type fakeAction struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo"`
}

// startFakeRecallGateway serves get_group_msg_history/get_friend_msg_history
// with a single canned page (history is exhausted after the first call) and
// records every delete_msg id it receives.
func startFakeRecallGateway(t *testing.T, messages []onebot.GetMsgResult) (*onebot.Client, *[]int64) {
	t.Helper()
	var mu sync.Mutex
	var deleted []int64
	served := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req fakeAction
			_ = testJSON.Unmarshal(data, &req)

			resp := map[string]any{"status": "ok", "retcode": 0, "echo": req.Echo}
			switch req.Action {
			case "get_group_msg_history", "get_friend_msg_history":
				mu.Lock()
				if served {
					resp["data"] = map[string]any{"messages": []onebot.GetMsgResult{}}
				} else {
					resp["data"] = map[string]any{"messages": messages}
					served = true
				}
				mu.Unlock()
			case "delete_msg":
				if id, ok := req.Params["message_id"].(float64); ok {
					mu.Lock()
					deleted = append(deleted, int64(id))
					mu.Unlock()
				}
				resp["data"] = map[string]any{}
			}
			payload, _ := testJSON.Marshal(resp)
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := onebot.NewClient(onebot.Config{URL: wsURL, CallTimeout: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	deadline := time.After(2 * time.Second)
	for !client.Connected() {
		select {
		case <-deadline:
			t.Fatal("fake gateway client never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}
	return client, &deleted
}

func TestSelfDeleteSkipsNonSelfAndEmpty(t *testing.T) {
	now := time.Now().Unix()
	messages := []onebot.GetMsgResult{
		{MessageID: 3, Sender: onebot.Sender{UserID: 999}, Time: now, RawMessage: "not mine"},
		{MessageID: 2, Sender: onebot.Sender{UserID: 1}, Time: now, RawMessage: ""},
		{MessageID: 1, Sender: onebot.Sender{UserID: 1}, Time: now, RawMessage: "hello"},
	}

	client, deleted := startFakeRecallGateway(t, messages)
	system := config.NewSystemConfigHolder(config.DefaultSystemConfig())
	walker := NewWalker(client, system)

	d, scanned, err := walker.SelfDelete(context.Background(), 1, Scope{GroupID: 555}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scanned != 3 {
		t.Fatalf("expected to scan 3 messages, got %d", scanned)
	}
	if d != 1 {
		t.Fatalf("expected 1 message deleted, got %d", d)
	}
	if len(*deleted) != 1 || (*deleted)[0] != 1 {
		t.Fatalf("expected message id 1 deleted, got %v", *deleted)
	}
}

func TestSelfDeleteStopsAtExpired(t *testing.T) {
	now := time.Now()
	messages := []onebot.GetMsgResult{
		{MessageID: 2, Sender: onebot.Sender{UserID: 1}, Time: now.Unix(), RawMessage: "recent"},
		{MessageID: 1, Sender: onebot.Sender{UserID: 1}, Time: now.Add(-1000 * time.Second).Unix(), RawMessage: "old"},
	}

	client, deleted := startFakeRecallGateway(t, messages)
	system := config.NewSystemConfigHolder(config.DefaultSystemConfig())
	walker := NewWalker(client, system)

	d, _, err := walker.SelfDelete(context.Background(), 1, Scope{GroupID: 555}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 1 {
		t.Fatalf("expected only the recent message deleted, got %d", d)
	}
	if len(*deleted) != 1 || (*deleted)[0] != 2 {
		t.Fatalf("expected message id 2 deleted, got %v", *deleted)
	}
}

func TestSelfDeleteRoutesPrivateScope(t *testing.T) {
	now := time.Now().Unix()
	messages := []onebot.GetMsgResult{
		{MessageID: 1, Sender: onebot.Sender{UserID: 42}, Time: now, RawMessage: "hi"},
	}

	client, deleted := startFakeRecallGateway(t, messages)
	system := config.NewSystemConfigHolder(config.DefaultSystemConfig())
	walker := NewWalker(client, system)

	d, _, err := walker.SelfDelete(context.Background(), 42, Scope{PeerUserID: 7}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 1 || len(*deleted) != 1 || (*deleted)[0] != 1 {
		t.Fatalf("expected message id 1 deleted via private scope, got deleted=%v count=%d", *deleted, d)
	}
}

func TestSelfDeleteZeroCountIsNoop(t *testing.T) {
	system := config.NewSystemConfigHolder(config.DefaultSystemConfig())
	walker := NewWalker(onebot.NewClient(onebot.Config{URL: "ws://127.0.0.1:0", CallTimeout: time.Second}), system)

	d, scanned, err := walker.SelfDelete(context.Background(), 1, Scope{GroupID: 1}, 0)
	if err != nil || d != 0 || scanned != 0 {
		t.Fatalf("expected no-op, got deleted=%d scanned=%d err=%v", d, scanned, err)
	}
}
