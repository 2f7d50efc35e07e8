package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/gapi/internal/google"
)

func TestWatchCredentialsInvalidatesAccount(t *testing.T) {
	sc, _ := newTestServerContext(t)
	store := google.NewStore(t.TempDir())

	_, err := sc.CalendarClient(context.Background(), "work")
	require.NoError(t, err)
	_, err = sc.CalendarClient(context.Background(), "default")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.WatchCredentials(ctx, store) }()

	cached := func(account string) bool {
		sc.mu.RLock()
		defer sc.mu.RUnlock()
		_, ok := sc.calendarClients[account]
		return ok
	}

	assert.Eventually(t, func() bool {
		// Rewrite until the watcher has registered the directory.
		_ = store.Save("work", &google.Credentials{Token: "new"})
		return !cached("work")
	}, 5*time.Second, 50*time.Millisecond)
	assert.True(t, cached("default"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
