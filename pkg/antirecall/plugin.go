// Package antirecall implements the anti-recall engine (C6): ingesting
// group messages into the recall cache and reacting to recall notices by
// reconstructing and redelivering the lost content.
package antirecall

import (
	"wardkeeper/pkg/config"
)

const pluginName = "anti_recall"

// Plugin reads the anti-recall engine's persisted configuration out of the
// shared config store, translating dotted-key lookups into typed values.
type Plugin struct {
	store *config.Store
}

func NewPlugin(store *config.Store) *Plugin {
	return &Plugin{store: store}
}

func (p *Plugin) Enabled() bool {
	return p.store.GetBool(config.PluginKey(pluginName, "enabled"), false)
}

func (p *Plugin) SetEnabled(enabled bool) error {
	if err := p.store.Set(config.PluginKey(pluginName, "enabled"), enabled); err != nil {
		return err
	}
	return p.store.Save()
}

// MonitorGroups returns the set of group ids this engine watches.
func (p *Plugin) MonitorGroups() []int64 {
	return p.int64List("monitor_groups")
}

// TargetUserIDs returns the users notified when a watched group's message
// is recalled.
func (p *Plugin) TargetUserIDs() []int64 {
	return p.int64List("target_user_id")
}

// ArchiveGroupID returns the group used to pre-archive opaque forwarded
// messages, and whether one is configured at all.
func (p *Plugin) ArchiveGroupID() (int64, bool) {
	raw := p.store.Get(config.PluginKey(pluginName, "archive_group_id"), nil)
	if raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		if v == 0 {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

func (p *Plugin) int64List(leaf string) []int64 {
	raw := p.store.Get(config.PluginKey(pluginName, leaf), nil)
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			out = append(out, int64(f))
		}
	}
	return out
}

// IsMonitored reports whether groupID is in the monitor set.
func (p *Plugin) IsMonitored(groupID int64) bool {
	for _, g := range p.MonitorGroups() {
		if g == groupID {
			return true
		}
	}
	return false
}
