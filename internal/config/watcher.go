package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands valid
// results to onChange. Editors often replace the file instead of writing it,
// so the parent directory is watched. onChange runs on a single goroutine,
// one call at a time and in reload order; while it is busy only the newest
// pending config is kept.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config)
	pending  chan *Config
	logger   zerolog.Logger
}

func NewWatcher(path string, onChange func(*Config), logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		onChange: onChange,
		pending:  make(chan *Config, 1),
		logger:   logger.With().Str("component", "config").Logger(),
	}
}

func (w *Watcher) String() string { return "config-watcher" }

// Serve watches until ctx ends.
func (w *Watcher) Serve(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.logger.Info().Str("path", w.path).Msg("watching config file")

	deliverCtx, stop := context.WithCancel(ctx)
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		w.deliver(deliverCtx)
	}()
	defer func() {
		stop()
		<-delivered
	}()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("config watch error")

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("ignoring invalid config change")
		return
	}

	w.logger.Info().Msg("config reloaded")

	// reload is only called from Serve, so the slot is free after the drain
	select {
	case <-w.pending:
	default:
	}
	w.pending <- cfg
}

func (w *Watcher) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-w.pending:
			w.onChange(cfg)
		}
	}
}
