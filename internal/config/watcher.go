package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and hands the new
// Config to a callback. Only settings that are safe to change at runtime
// (currently the log level) should be applied by callers.
type Watcher struct {
	path     string
	fw       *fsnotify.Watcher
	onChange func(*Config)
	log      *slog.Logger
	done     chan struct{}
}

// NewWatcher watches the directory holding path, so editors that replace the
// file by rename are still seen.
func NewWatcher(path string, log *slog.Logger, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     filepath.Clean(path),
		fw:       fw,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Run blocks until Close is called.
func (w *Watcher) Run() {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			w.log.Info("config reloaded", "path", w.path)
			w.onChange(cfg)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops Run and releases the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
