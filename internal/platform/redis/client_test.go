// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("connects_and_pings", func(t *testing.T) {
		server := miniredis.RunT(t)

		client, err := NewClient(context.Background(), "redis://"+server.Addr()+"/0", logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		assert.NoError(t, Ping(context.Background(), client))
	})

	t.Run("rejects_bad_url", func(t *testing.T) {
		_, err := NewClient(context.Background(), "http://nope", logger)
		assert.ErrorContains(t, err, "parse url")
	})

	t.Run("fails_when_unreachable", func(t *testing.T) {
		server := miniredis.RunT(t)
		addr := server.Addr()
		server.Close()

		_, err := NewClient(context.Background(), "redis://"+addr, logger)
		assert.ErrorContains(t, err, "ping")
	})
}
