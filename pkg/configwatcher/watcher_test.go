package configwatcher

import (
	"context"
	"examprep_backend/internal/config"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  mode: debug\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *config.Config, 1)
	load := func(string) (*config.Config, error) {
		return &config.Config{Server: config.ServerConfig{Mode: "release"}}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, path, load, func(cfg *config.Config) { reloaded <- cfg })
	}()

	// 等待 watcher 就绪
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  mode: release\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "release", cfg.Server.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
