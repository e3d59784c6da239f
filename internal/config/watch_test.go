package config

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnExternalWrite(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	changed := make(chan struct{}, 4)
	m.RegisterChangeCallback(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	require.NoError(t, m.Watch())
	defer m.CloseWatch()

	// move past the own-save suppression window from the initial seed
	time.Sleep(600 * time.Millisecond)

	cfg := DefaultConfig()
	cfg.MinDelay = 0.333
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m.Path(), data, 0o644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("external config write was not picked up")
	}
	require.Equal(t, 0.333, m.Get().MinDelay)
}

func TestCloseWatchWithoutWatchIsSafe(t *testing.T) {
	m := newTestManager(t)
	m.CloseWatch()
	m.CloseWatch()
}
