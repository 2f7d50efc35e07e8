package server

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/teemow/gapi/internal/google"
	"github.com/teemow/gapi/internal/logging"
)

// WatchCredentials invalidates an account's cached clients whenever its
// credentials file is written, replaced or removed. It blocks until ctx is
// done. The directory is created if it does not exist yet.
func (sc *ServerContext) WatchCredentials(ctx context.Context, store *google.Store) error {
	if err := os.MkdirAll(store.Dir(), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create credentials watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(store.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", store.Dir(), err)
	}
	sc.logger.Debug("watching credentials directory", "dir", store.Dir())

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&relevant == 0 {
				continue
			}
			if account, ok := store.AccountForPath(ev.Name); ok {
				sc.logger.Debug("credentials changed", logging.Account(account), "op", ev.Op.String())
				sc.InvalidateAccount(account)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			sc.logger.Warn("credentials watcher error", logging.Err(err))
		}
	}
}
