package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/rbaliyan/meshsandbox/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("canned is read-only with messages", func(t *testing.T) {
		cfg := config.Default()
		st, err := openStore(cfg, logger)
		require.NoError(t, err)
		defer st.Close(ctx)

		assert.True(t, st.ReadOnly())
		msgs, err := st.GetRichInbox(ctx, "X26ABC1")
		require.NoError(t, err)
		assert.NotEmpty(t, msgs)
	})

	t.Run("memory starts empty", func(t *testing.T) {
		cfg := config.Default()
		cfg.StoreMode = config.StoreMemory
		st, err := openStore(cfg, logger)
		require.NoError(t, err)
		defer st.Close(ctx)

		assert.False(t, st.ReadOnly())
		msgs, err := st.GetRichInbox(ctx, "X26ABC1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("file", func(t *testing.T) {
		cfg := config.Default()
		cfg.StoreMode = config.StoreFile
		cfg.FileStoreDir = t.TempDir()
		st, err := openStore(cfg, logger)
		require.NoError(t, err)
		defer st.Close(ctx)

		assert.False(t, st.ReadOnly())
	})

	t.Run("missing fixture dir", func(t *testing.T) {
		cfg := config.Default()
		cfg.FixtureDir = t.TempDir()
		st, err := openStore(cfg, logger)
		require.NoError(t, err)
		defer st.Close(ctx)

		_, err = st.GetMailbox(ctx, "X26ABC1", false)
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = config.LogText
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "build_label=latest")
}
