// Package config implements the plugin-keyed persistent JSON document (the
// "config store") and the engine-level SystemConfig tunables it sits beside.
package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const emptyDocument = "{}"

// Store is the process-wide singleton JSON document described in the
// original design: `plugins.<plugin>.<dotted.key>` paths over a single
// in-memory tree, saved atomically. All operations serialize under mu;
// only Save and Reload hold the lock across I/O: Save's is a single
// tmp-write-then-rename, Reload's a single file read.
type Store struct {
	mu       sync.Mutex
	path     string
	document string
}

// NewStore loads path if present, degrading to an empty document on any
// read or parse failure — a corrupt or missing config file never fails
// startup.
func NewStore(path string) *Store {
	s := &Store{path: path}
	s.reloadLocked()
	return s
}

func (s *Store) reloadLocked() {
	data, err := os.ReadFile(s.path)
	if err != nil || !gjson.ValidBytes(data) {
		s.document = emptyDocument
		return
	}
	s.document = string(data)
}

// Reload discards the in-memory cache and re-reads the file from disk.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
}

// Get walks dottedKey ("plugins.anti_recall.enabled") against the document
// and returns fallback if any segment is missing or not addressable.
func (s *Store) Get(dottedKey string, fallback any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := gjson.Get(s.document, dottedKey)
	if !res.Exists() {
		return fallback
	}
	return res.Value()
}

// GetBool is Get with a boolean-typed fallback and type assertion; any
// non-bool value stored at the key is treated as absent.
func (s *Store) GetBool(dottedKey string, fallback bool) bool {
	v := s.Get(dottedKey, fallback)
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// Set auto-vivifies intermediate maps along dottedKey, overwriting a
// scalar-in-path with a map when necessary, matching sjson's own semantics.
func (s *Store) Set(dottedKey string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, err := sjson.Set(s.document, dottedKey, value)
	if err != nil {
		return err
	}
	s.document = updated
	return nil
}

// Save serializes the tree pretty-printed with sorted keys and a trailing
// newline to a sibling .tmp file, then atomically renames it over path.
// A crash between the write and the rename leaves the original file intact.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	var tree map[string]any
	if err := json.Unmarshal([]byte(s.document), &tree); err != nil {
		tree = map[string]any{}
	}

	buf, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// PluginKey constructs the dotted key under which a plugin's settings live.
func PluginKey(plugin, leaf string) string {
	return "plugins." + plugin + "." + leaf
}

// Watch installs an advisory fsnotify watch on the document's directory and
// reloads the in-memory cache whenever the file itself changes. It is
// advisory only: Get/Set/Save remain correct whether or not Watch is ever
// called, and a watch failure is logged, not returned to the composition
// root as fatal.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.Reload()
				slog.Info("config store reloaded from disk change", "path", s.path)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watch error", "error", watchErr)
			}
		}
	}()

	return nil
}
