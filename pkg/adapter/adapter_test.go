package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/gorilla/websocket"

	"wardkeeper/pkg/onebot"
)

var testJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// action is the minimal envelope used to read the echo id back from a raw
// frame without depending on onebot's unexported request/response types.
type action struct {
	Action string `json:"action"`
	Echo   string `json:"echo"`
}

func startFakeGateway(t *testing.T, reply map[string]any) *onebot.Client {
	t.Helper()
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
			var req action
			_ = testJSON.Unmarshal(data, &req)
			resp := map[string]any{"status": "ok", "retcode": 0, "echo": req.Echo, "data": reply}
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
	return client
}

func TestFetchGroupLatestMessageID(t *testing.T) {
	client := startFakeGateway(t, map[string]any{
		"messages": []map[string]any{{"message_id": 9001}},
	})
	a := NewOneBotV11(client)

	id, ok := a.FetchGroupLatestMessageID(context.Background(), 555)
	if !ok || id != 9001 {
		t.Fatalf("expected (9001,true), got (%d,%v)", id, ok)
	}
}

func TestExtractAudioBase64EmptyOnFailure(t *testing.T) {
	a := NewOneBotV11(onebot.NewClient(onebot.Config{URL: "ws://127.0.0.1:0", CallTimeout: time.Second}))
	got := a.ExtractAudioBase64(context.Background(), "voice.silk")
	if got != "" {
		t.Fatalf("expected empty string on failure, got %q", got)
	}
}
