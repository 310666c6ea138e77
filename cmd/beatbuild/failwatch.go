package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// watchFailFile calls onFail once when path is created or written.
// A marker left over from an earlier run is removed first. The watcher stops with ctx.
func watchFailFile(ctx context.Context, path string, onFail func(), log *logrus.Entry) error {
	path = filepath.Clean(path)
	if err := os.Remove(path); err == nil {
		log.Warnf("[FAILWATCH] Removed stale fail marker %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear fail marker: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				log.Infof("[FAILWATCH] Fail marker %s detected", path)
				onFail()
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("[FAILWATCH] Watcher error: %v", err)
			}
		}
	}()

	log.Debugf("[FAILWATCH] Watching %s", path)
	return nil
}
