package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses the burst of events editors produce on save.
const debounce = 200 * time.Millisecond

// watch exports once, then again after every change to the project file,
// until ctx is done. Failed exports are logged and the watch goes on.
func watch(ctx context.Context, cfg config, log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors often replace the file by renaming.
	target := filepath.Clean(cfg.project)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	export := func() {
		if _, err := run(ctx, cfg, log); err != nil {
			log.Error("export failed", "err", err)
		}
	}
	export()
	log.Info("watching", "project", target)

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			log.Debug("project changed", "op", ev.Op)
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)
		case <-timer.C:
			export()
		}
	}
}
