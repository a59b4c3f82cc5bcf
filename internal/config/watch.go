package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hokuto-m/enrichd/internal/log"
)

// Watch re-loads the config file on change and invokes onReload with the new
// snapshot. Only hot-safe fields (log level, rate limits, summary max) are
// expected to be consumed by the callback; structural fields need a restart.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onReload func(Snapshot)) error {
	logger := log.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			logger.Error().Err(cerr).Str("event", "config.watch_close_error").Msg("failed to close watcher")
		}
	}()

	if err := watcher.Add(path); err != nil {
		return err
	}
	logger.Info().Str("event", "config.watch_start").Str("path", path).Msg("watching config file")

	// Editors fire several events per save; coalesce with a short timer.
	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			snap, lerr := Load(path)
			if lerr != nil {
				logger.Warn().Err(lerr).Str("event", "config.reload_error").Msg("config file changed but reload failed, keeping previous snapshot")
				continue
			}
			log.SetLevel(snap.LogLevel)
			logger.Info().Str("event", "config.reloaded").Str("path", path).Msg("config reloaded")
			if onReload != nil {
				onReload(snap)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(werr).Str("event", "config.watch_error").Msg("config watcher error")
		}
	}
}
