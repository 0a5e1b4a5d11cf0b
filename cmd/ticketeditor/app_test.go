package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testAppConfig(t *testing.T) *Config {
	t.Helper()

	c := NewConfig()
	c.ListenAddr = "localhost:0"
	c.Environment = "dev"
	c.ClientID = "client-id"
	c.ClientSecret = "client-secret"
	c.CloudID = "cloud-id"
	c.SecretKey = "secret"
	c.StorePath = t.TempDir()
	return c
}

func Test_ServerApp(t *testing.T) {
	t.Run("starts and stops gracefully on context cancellation", func(t *testing.T) {
		srv, err := NewServerApp(context.Background(), testAppConfig(t))
		require.NoError(t, err, "app should initialize without errors")

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err = srv.Run(ctx)
		require.ErrorIs(t, err, http.ErrServerClosed, "graceful stop should surface ErrServerClosed")
	})

	t.Run("invalid log level fails initialization", func(t *testing.T) {
		c := testAppConfig(t)
		c.LogLevel = "noisy"

		_, err := NewServerApp(context.Background(), c)
		require.Error(t, err)
	})
}
