package main

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchSignals_ForwardsAndExitsOnClose(t *testing.T) {
	aborts := make(chan struct{}, 4)
	sigCh := make(chan os.Signal, 1)
	done := watchSignals(sigCh, func() error {
		aborts <- struct{}{}
		return nil
	}, zap.NewNop())

	sigCh <- os.Interrupt
	select {
	case <-aborts:
	case <-time.After(time.Second):
		t.Fatal("signal was not forwarded to abort")
	}

	close(sigCh)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not exit after the channel closed")
	}
}

func TestWatchSignals_AbortErrorKeepsWatching(t *testing.T) {
	calls := make(chan struct{}, 4)
	sigCh := make(chan os.Signal, 1)
	done := watchSignals(sigCh, func() error {
		calls <- struct{}{}
		return errors.New("no model stream to abort")
	}, zap.NewNop())

	sigCh <- os.Interrupt
	<-calls
	sigCh <- os.Interrupt
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("watcher stopped after an abort error")
	}

	close(sigCh)
	<-done
}

func TestParseIndex(t *testing.T) {
	got, err := parseIndex(":rewind 3", ":rewind")
	require.NoError(t, err)
	require.Equal(t, 3, got)

	_, err = parseIndex(":rewind", ":rewind")
	require.Error(t, err)

	_, err = parseIndex(":rewind x", ":rewind")
	require.Error(t, err)
}
