package config

import (
	"os"
	"sync/atomic"
	"time"
)

// SystemConfig holds the engine-level technical parameters: retry policy,
// timeouts, cache sizing and the scripted sleeps the anti-recall and
// self-delete pipelines rely on. Unlike Store, it is read-mostly and safe to
// default field-by-field — a missing or malformed system.json is never a
// startup failure.
type SystemConfig struct {
	MaxRetries               int    `json:"max_retries"`
	RetryDelayMs             int    `json:"retry_delay_ms"`
	GatewayCallTimeoutMs     int    `json:"gateway_call_timeout_ms"`
	WebhookTimeoutMs         int    `json:"webhook_timeout_ms"`
	CacheCapacity            int    `json:"cache_capacity"`
	ArchiveSettleDelayMs     int    `json:"archive_settle_delay_ms"`
	ForwardPaceDelayMs       int    `json:"forward_pace_delay_ms"`
	SelfDeletePaceDelayMs    int    `json:"self_delete_pace_delay_ms"`
	SelfDeleteExpirySeconds  int    `json:"self_delete_expiry_seconds"`
	SelfDeleteMaxBatches     int    `json:"self_delete_max_batches"`
	LogLevel                 string `json:"log_level"`
}

// DefaultSystemConfig returns the hardcoded safe defaults documented in the
// component design (C12).
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:              3,
		RetryDelayMs:            500,
		GatewayCallTimeoutMs:    30000,
		WebhookTimeoutMs:        30000,
		CacheCapacity:           100,
		ArchiveSettleDelayMs:    1000,
		ForwardPaceDelayMs:      1000,
		SelfDeletePaceDelayMs:   500,
		SelfDeleteExpirySeconds: 100,
		SelfDeleteMaxBatches:    5,
		LogLevel:                "info",
	}
}

func (s *SystemConfig) DeepCopy() *SystemConfig {
	cp := *s
	return &cp
}

func (s *SystemConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

func (s *SystemConfig) GatewayCallTimeout() time.Duration {
	return time.Duration(s.GatewayCallTimeoutMs) * time.Millisecond
}

func (s *SystemConfig) WebhookTimeout() time.Duration {
	return time.Duration(s.WebhookTimeoutMs) * time.Millisecond
}

func (s *SystemConfig) ArchiveSettleDelay() time.Duration {
	return time.Duration(s.ArchiveSettleDelayMs) * time.Millisecond
}

func (s *SystemConfig) ForwardPaceDelay() time.Duration {
	return time.Duration(s.ForwardPaceDelayMs) * time.Millisecond
}

func (s *SystemConfig) SelfDeletePaceDelay() time.Duration {
	return time.Duration(s.SelfDeletePaceDelayMs) * time.Millisecond
}

func (s *SystemConfig) SelfDeleteExpiry() time.Duration {
	return time.Duration(s.SelfDeleteExpirySeconds) * time.Second
}

// LoadSystemConfig reads path, overlaying onto the defaults. A missing or
// unparseable file simply yields the defaults.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultSystemConfig()
	}
	return cfg
}

// SystemConfigHolder lets readers observe hot-reloaded SystemConfig values
// without racing the writer: reloads swap the pointer atomically, so an
// in-flight operation keeps using the snapshot it started with.
type SystemConfigHolder struct {
	value atomic.Pointer[SystemConfig]
}

func NewSystemConfigHolder(initial *SystemConfig) *SystemConfigHolder {
	h := &SystemConfigHolder{}
	h.value.Store(initial)
	return h
}

func (h *SystemConfigHolder) Get() *SystemConfig {
	return h.value.Load()
}

func (h *SystemConfigHolder) Set(cfg *SystemConfig) {
	h.value.Store(cfg)
}
