package config

import (
	"os"
	"path/filepath"
	"time"
)

// Watcher detects edits to a configuration file. It has no goroutine of its
// own: the tracking loop calls Poll once per tick and applies a changed
// configuration between frames.
type Watcher struct {
	path     string
	modTime  time.Time
	interval time.Duration
	lastPoll time.Time
}

// NewWatcher watches path, checking its modification time at most once per
// interval. Returns nil if the file cannot be stat'ed.
func NewWatcher(path string, interval time.Duration) *Watcher {
	// Resolve symlinks so edits through a link are seen
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &Watcher{path: path, modTime: info.ModTime(), interval: interval}
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Poll reloads the file if it was modified since the last successful load.
// It returns the new configuration and true on change. A file that fails to
// load is reported once and then ignored until it is modified again.
func (w *Watcher) Poll(now time.Time) (Config, bool, error) {
	if now.Sub(w.lastPoll) < w.interval {
		return Config{}, false, nil
	}
	w.lastPoll = now

	info, err := os.Stat(w.path)
	if err != nil {
		return Config{}, false, nil
	}
	if !info.ModTime().After(w.modTime) {
		return Config{}, false, nil
	}
	w.modTime = info.ModTime()

	cfg, err := Load(w.path)
	if err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}
