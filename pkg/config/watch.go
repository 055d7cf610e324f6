package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch reloads the global configuration whenever the config file changes
// and hands every valid reload to onChange. Invalid files are logged and
// ignored so a typo never replaces a working configuration.
//
// The directory is watched rather than the file because editors and
// config-map mounts replace the file instead of writing it in place.
func Watch(ctx context.Context, path string, logger logrus.FieldLogger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := Load()
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				logger.WithError(err).WithField("path", path).Warn("ignoring invalid configuration change")
				continue
			}
			configMu.Lock()
			globalConfig = cfg
			configMu.Unlock()
			logger.WithField("path", path).Info("configuration reloaded")
			if onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("configuration watcher error")
		}
	}
}
