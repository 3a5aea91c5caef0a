package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"

	"wardkeeper/pkg/adapter"
	"wardkeeper/pkg/agent"
	"wardkeeper/pkg/alert"
	"wardkeeper/pkg/antirecall"
	"wardkeeper/pkg/cache"
	"wardkeeper/pkg/command"
	"wardkeeper/pkg/config"
	"wardkeeper/pkg/llm"
	_ "wardkeeper/pkg/llm/gemini"
	_ "wardkeeper/pkg/llm/ollama"
	_ "wardkeeper/pkg/llm/openailm"
	"wardkeeper/pkg/monitor"
	"wardkeeper/pkg/onebot"
	"wardkeeper/pkg/recall"
	"wardkeeper/pkg/segment"
	"wardkeeper/pkg/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sysPath := envOr("SYSTEM_CONFIG_JSON_PATH", "system.json")
	system := config.NewSystemConfigHolder(config.LoadSystemConfig(sysPath))

	monitor.PrintBanner()
	monitor.SetupSlog(system.Get().LogLevel)

	if err := run(ctx, system, sysPath); err != nil {
		slog.Error("wardkeeper exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, system *config.SystemConfigHolder, sysPath string) error {
	store := config.NewStore(envOr("NB_CONFIG_JSON_PATH", "data/config.json"))
	if err := store.Watch(ctx); err != nil {
		slog.Warn("config store watch failed to install, continuing without hot reload", "error", err)
	}

	sysWatchCtx, cancelSysWatch := context.WithCancel(ctx)
	defer cancelSysWatch()
	go watchSystemConfig(sysWatchCtx, system, sysPath)

	llmClient, err := llm.NewFromConfig(llmConfigFromEnv(), system.Get().MaxRetries, system.Get().RetryDelay())
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	webhookClient := webhook.NewClient(webhook.Config{
		BaseURL:   os.Getenv("AGENT__N8N_BASE_URL"),
		Path:      os.Getenv("AGENT__N8N_WEBHOOK_PATH"),
		APIKey:    os.Getenv("AGENT__N8N_API_KEY"),
		TimeoutMs: system.Get().WebhookTimeoutMs,
	})

	alertSink, err := alert.New(alert.Config{
		Token:  os.Getenv("ADMIN_ALERT__TELEGRAM_TOKEN"),
		ChatID: envInt64("ADMIN_ALERT__TELEGRAM_CHAT_ID"),
	})
	if err != nil {
		slog.Warn("admin alert relay disabled: init failed", "error", err)
		alertSink = &alert.Telegram{}
	}

	gatewayClient := onebot.NewClient(onebot.Config{
		URL:         os.Getenv("ONEBOT_WS_URL"),
		AccessToken: os.Getenv("ONEBOT_ACCESS_TOKEN"),
		CallTimeout: system.Get().GatewayCallTimeout(),
		OnEvent:     nil, // set below once the dispatcher closes over gatewayClient
	})

	plugin := antirecall.NewPlugin(store)
	msgCache := cache.New(system.Get().CacheCapacity)
	onebotAdapter := adapter.NewOneBotV11(gatewayClient)
	engine := antirecall.NewEngine(plugin, msgCache, onebotAdapter, gatewayClient, system, alertSink)

	sessions := agent.NewSessionStore()
	superusers := command.LoadSuperusers()
	audioLookup := func(file string) string { return onebotAdapter.ExtractAudioBase64(context.Background(), file) }
	router := agent.NewRouter(sessions, llmClient, webhookClient, gatewayClient, superusers, audioLookup, alertSink)

	walker := recall.NewWalker(gatewayClient, system)
	namespace := command.DefaultNamespace()

	d := &dispatcher{
		namespace:  namespace,
		superusers: superusers,
		plugin:     plugin,
		engine:     engine,
		router:     router,
		walker:     walker,
		gateway:    gatewayClient,
	}
	gatewayClient.SetOnEvent(d.handleEvent)

	go gatewayClient.Run(ctx)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping")
	return nil
}

// watchSystemConfig re-reads path on a fixed interval, matching C12's
// safe-to-default reload semantics without taking a second fsnotify watch
// on top of the config store's.
func watchSystemConfig(ctx context.Context, holder *config.SystemConfigHolder, path string) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			holder.Set(config.LoadSystemConfig(path))
		}
	}
}

// llmConfigFromEnv builds the provider-array JSON loader.NewFromConfig
// expects out of AGENT__* environment variables. AGENT__PROVIDER selects
// which provider entry is primary; all three provider types are always
// registered (via the blank llm/* imports above) so an operator can switch
// providers by changing env vars alone, no rebuild required.
func llmConfigFromEnv() jsoniter.RawMessage {
	provider := envOr("AGENT__PROVIDER", "gemini")

	entry := llm.ProviderConfig{Type: provider, Options: map[string]any{}}
	switch provider {
	case "gemini":
		entry.Options["api_key"] = os.Getenv("AGENT__GEMINI_API_KEY")
		entry.Options["model"] = os.Getenv("AGENT__GEMINI_MODEL")
		entry.Options["base_url"] = os.Getenv("AGENT__GEMINI_BASE_URL")
	case "openai":
		entry.Options["api_key"] = os.Getenv("AGENT__OPENAI_API_KEY")
		entry.Options["model"] = os.Getenv("AGENT__OPENAI_MODEL")
		entry.Options["base_url"] = os.Getenv("AGENT__OPENAI_BASE_URL")
	case "ollama":
		entry.Options["model"] = os.Getenv("AGENT__OLLAMA_MODEL")
		entry.Options["base_url"] = os.Getenv("AGENT__OLLAMA_BASE_URL")
	}

	data, _ := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal([]llm.ProviderConfig{entry})
	return data
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// dispatcher routes decoded gateway events. Private messages go through
// agent session interception first (a live session claims the message
// outright), then command matching; group messages go only to anti-recall
// ingest and are never command-matched — per 4.15's wiring order and the
// priority rule documented in 4.7.
type dispatcher struct {
	namespace  command.Namespace
	superusers command.Superusers
	plugin     *antirecall.Plugin
	engine     *antirecall.Engine
	router     *agent.Router
	walker     *recall.Walker
	gateway    *onebot.Client
}

func (d *dispatcher) handleEvent(evt onebot.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked, recovering", "panic", r)
		}
	}()

	ctx := context.Background()

	switch evt.PostType {
	case onebot.PostTypeMessage:
		var msg onebot.MessageEvent
		if err := evt.Decode(&msg); err != nil {
			slog.Debug("failed to decode message event", "error", err)
			return
		}
		d.handleMessage(ctx, msg)
	case onebot.PostTypeNotice:
		if evt.NoticeType != onebot.NoticeTypeGroupRecall {
			return
		}
		var notice onebot.GroupRecallNotice
		if err := evt.Decode(&notice); err != nil {
			slog.Debug("failed to decode group recall notice", "error", err)
			return
		}
		d.engine.React(ctx, notice)
	}
}

func (d *dispatcher) handleMessage(ctx context.Context, msg onebot.MessageEvent) {
	if msg.MessageType == onebot.MessageTypeGroup {
		d.engine.Ingest(ctx, msg, "", nil, false)
		return
	}

	// Private message: a live agent session claims the message outright,
	// blocking further handlers — command grammar only gets a look when no
	// session is open for this sender, per 4.7's priority order.
	segs := segment.NormalizeContent(msg.Message)
	if d.router.Intercept(ctx, msg.SelfID, msg.UserID, segs) {
		return
	}

	text := segment.ToCQString(segs)
	if rest, ok := d.namespace.StripPrefix(strings.TrimSpace(text)); ok {
		d.handleCommand(ctx, msg, rest)
	}
}

func (d *dispatcher) handleCommand(ctx context.Context, msg onebot.MessageEvent, rest string) bool {
	tokens := d.namespace.Split(rest)
	if len(tokens) == 0 {
		return false
	}

	if !d.superusers.IsSuperuser(msg.UserID) {
		return true // addressed to us, but silently ignored per 4.2
	}

	switch tokens[0] {
	case "antirecall":
		d.handleAntirecall(ctx, msg, tokens[1:])
	case "recall":
		d.handleRecall(ctx, msg, tokens[1:])
	case "a":
		opening := strings.TrimSpace(strings.TrimPrefix(rest, tokens[0]))
		d.router.HandleOpen(ctx, msg.SelfID, msg.UserID, opening)
	case "test":
		d.handleTest(ctx, msg, tokens[1:])
	default:
		return false
	}
	return true
}

func (d *dispatcher) handleAntirecall(ctx context.Context, msg onebot.MessageEvent, args []string) {
	reply := func(text string) {
		d.gateway.SendPrivateMsg(ctx, msg.UserID, segment.Message{segment.Text(text)})
	}

	sub := "status"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "on":
		if err := d.plugin.SetEnabled(true); err != nil {
			reply("开启失败：" + err.Error())
			return
		}
		reply("防撤回已开启")
	case "off":
		if err := d.plugin.SetEnabled(false); err != nil {
			reply("关闭失败：" + err.Error())
			return
		}
		reply("防撤回已关闭")
	case "toggle":
		if err := d.plugin.SetEnabled(!d.plugin.Enabled()); err != nil {
			reply("切换失败：" + err.Error())
			return
		}
		reply(fmt.Sprintf("防撤回已切换为：%v", d.plugin.Enabled()))
	default:
		reply(fmt.Sprintf("防撤回当前状态：%v", d.plugin.Enabled()))
	}
}

func (d *dispatcher) handleRecall(ctx context.Context, msg onebot.MessageEvent, args []string) {
	if len(args) == 0 {
		return
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count <= 0 {
		return
	}

	scope := recall.Scope{}
	switch {
	case len(args) > 1:
		if gid, err := strconv.ParseInt(args[1], 10, 64); err == nil {
			scope.GroupID = gid
		}
	case msg.GroupID != 0:
		scope.GroupID = msg.GroupID
	default:
		scope.PeerUserID = msg.UserID
	}

	deleted, scanned, err := d.walker.SelfDelete(ctx, msg.SelfID, scope, count)
	if err != nil {
		slog.Warn("recall command failed", "error", err)
		return
	}
	slog.Info("recall command completed", "deleted", deleted, "scanned", scanned)
}

func (d *dispatcher) handleTest(ctx context.Context, msg onebot.MessageEvent, args []string) {
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "send":
		d.gateway.SendPrivateMsg(ctx, msg.UserID, segment.Message{segment.Text("test send ok")})
	case "alconna":
		d.gateway.SendPrivateMsg(ctx, msg.UserID, segment.Message{segment.Text(strings.Join(args, " "))})
	}
}
