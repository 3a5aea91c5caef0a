package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"wardkeeper/pkg/antirecall"
	"wardkeeper/pkg/cache"
	"wardkeeper/pkg/command"
	"wardkeeper/pkg/config"
	"wardkeeper/pkg/onebot"
)

var testDispatchJSON = jsoniter.ConfigCompatibleWithStandardLibrary
var testDispatchUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type dispatchAction struct {
	Action string `json:"action"`
	Echo   string `json:"echo"`
}

func startDispatchFakeGateway(t *testing.T) (*onebot.Client, *[]string) {
	t.Helper()
	var calls []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testDispatchUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req dispatchAction
			_ = testDispatchJSON.Unmarshal(data, &req)
			calls = append(calls, req.Action)
			resp := map[string]any{"status": "ok", "retcode": 0, "echo": req.Echo, "data": map[string]any{"message_id": 1}}
			payload, _ := testDispatchJSON.Marshal(resp)
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
			t.Fatal("fake gateway never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}
	return client, &calls
}

func newTestDispatcher(t *testing.T, gateway *onebot.Client, superuserID int64) *dispatcher {
	t.Helper()
	store := config.NewStore(t.TempDir() + "/config.json")
	plugin := antirecall.NewPlugin(store)
	system := config.NewSystemConfigHolder(config.DefaultSystemConfig())
	_ = cache.New(system.Get().CacheCapacity)

	return &dispatcher{
		namespace:  command.DefaultNamespace(),
		superusers: command.NewSuperusers(map[int64]struct{}{superuserID: {}}),
		plugin:     plugin,
		gateway:    gateway,
	}
}

func TestHandleCommandIgnoresNonSuperuserSilently(t *testing.T) {
	gateway, calls := startDispatchFakeGateway(t)
	d := newTestDispatcher(t, gateway, 1)

	claimed := d.handleCommand(context.Background(), onebot.MessageEvent{UserID: 999}, "antirecall status")
	if !claimed {
		t.Fatalf("expected command addressed to the bot to be claimed even when ignored")
	}
	if len(*calls) != 0 {
		t.Fatalf("expected no gateway calls for a non-superuser command, got %v", *calls)
	}
}

func TestHandleAntirecallOnOff(t *testing.T) {
	gateway, calls := startDispatchFakeGateway(t)
	d := newTestDispatcher(t, gateway, 1)

	d.handleAntirecall(context.Background(), onebot.MessageEvent{UserID: 1}, []string{"on"})
	if !d.plugin.Enabled() {
		t.Fatalf("expected anti-recall to be enabled after 'on'")
	}

	d.handleAntirecall(context.Background(), onebot.MessageEvent{UserID: 1}, []string{"off"})
	if d.plugin.Enabled() {
		t.Fatalf("expected anti-recall to be disabled after 'off'")
	}

	if len(*calls) == 0 {
		t.Fatalf("expected reply sends to reach the gateway")
	}
}

func TestHandleCommandUnknownVerbUnclaimed(t *testing.T) {
	gateway, _ := startDispatchFakeGateway(t)
	d := newTestDispatcher(t, gateway, 1)

	claimed := d.handleCommand(context.Background(), onebot.MessageEvent{UserID: 1}, "nonsense here")
	if claimed {
		t.Fatalf("expected an unrecognized verb to go unclaimed")
	}
}
