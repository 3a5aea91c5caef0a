package onebot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// startEchoGateway serves WS connections that reply to every action with a
// canned message_id of 555. It pushes no events; the returned channel is
// never written to.
func startEchoGateway(t *testing.T) (*httptest.Server, chan<- Event) {
	t.Helper()
	events := make(chan Event, 1)

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
			var req actionRequest
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			resp := actionResponse{
				Status:  "ok",
				RetCode: 0,
				Data:    jsonRaw(`{"message_id":555}`),
				Echo:    req.Echo,
			}
			payload, _ := json.Marshal(resp)
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	}))

	return srv, events
}

func jsonRaw(s string) []byte { return []byte(s) }

func TestClientCallRoundTrip(t *testing.T) {
	srv, _ := startEchoGateway(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewClient(Config{URL: wsURL, CallTimeout: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	deadline := time.After(2 * time.Second)
	for !client.Connected() {
		select {
		case <-deadline:
			t.Fatal("client never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}

	id, err := client.SendPrivateMsg(context.Background(), 123, nil)
	if err != nil {
		t.Fatalf("SendPrivateMsg: %v", err)
	}
	if id != 555 {
		t.Fatalf("expected message id 555, got %d", id)
	}
}

func TestCallFailsWhenDisconnected(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:0", CallTimeout: time.Second})
	_, err := client.SendPrivateMsg(context.Background(), 1, nil)
	if err != ErrGatewayDisconnected {
		t.Fatalf("expected ErrGatewayDisconnected, got %v", err)
	}
}
