package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("set default option", func(t *testing.T) {
		c := NewConfig()

		require.Equal(t, "localhost:8000", c.ListenAddr, "default listen address not set")
		require.Equal(t, "info", c.LogLevel, "default log level not set")
		require.Equal(t, "prod", c.Environment, "default environment not set")
		require.Equal(t, "./credential-store", c.StorePath, "default store path not set")
		require.Equal(t, "http://localhost:8000", c.BaseURL, "default base url not set")
		require.Equal(t, "", c.ClientID, "client id should be empty by default")
		require.Equal(t, "", c.SecretKey, "secret key should be empty by default")
	})

	t.Run("load env", func(t *testing.T) {
		c := NewConfig()
		getenv := func(key string) string {
			switch key {
			case "RUN_ADDRESS":
				return "localhost:9000"
			case "LOG_LEVEL":
				return "debug"
			case "CLIENT_ID":
				return "client-id"
			case "CLIENT_SECRET":
				return "client-secret"
			case "CLOUD_ID":
				return "cloud-id"
			case "SECRET_KEY":
				return "secret"
			case "STORE_PATH":
				return "/var/lib/ticketeditor"
			case "BASE_URL":
				return "https://tickets.example.com"
			default:
				return ""
			}
		}

		c.LoadEnv(getenv)

		require.Equal(t, "localhost:9000", c.ListenAddr)
		require.Equal(t, "debug", c.LogLevel)
		require.Equal(t, "client-id", c.ClientID)
		require.Equal(t, "client-secret", c.ClientSecret)
		require.Equal(t, "cloud-id", c.CloudID)
		require.Equal(t, "secret", c.SecretKey)
		require.Equal(t, "/var/lib/ticketeditor", c.StorePath)
		require.Equal(t, "https://tickets.example.com", c.BaseURL)
	})

	t.Run("empty env keeps defaults", func(t *testing.T) {
		c := NewConfig()

		c.LoadEnv(func(string) string { return "" })

		require.Equal(t, "localhost:8000", c.ListenAddr)
		require.Equal(t, "info", c.LogLevel)
	})

	t.Run("parse flags", func(t *testing.T) {
		t.Run("valid flags", func(t *testing.T) {
			c := NewConfig()

			err := c.ParseFlags([]string{
				"-a", "localhost:9000",
				"-l", "debug",
				"-e", "dev",
				"--client-id", "client-id",
				"--client-secret", "client-secret",
				"--cloud-id", "cloud-id",
				"-s", "secret",
				"--store", "/tmp/store",
				"-b", "https://tickets.example.com",
			})

			require.NoError(t, err, "correct flags must parse without error")
			require.Equal(t, "localhost:9000", c.ListenAddr)
			require.Equal(t, "debug", c.LogLevel)
			require.Equal(t, "dev", c.Environment)
			require.Equal(t, "client-id", c.ClientID)
			require.Equal(t, "client-secret", c.ClientSecret)
			require.Equal(t, "cloud-id", c.CloudID)
			require.Equal(t, "secret", c.SecretKey)
			require.Equal(t, "/tmp/store", c.StorePath)
			require.Equal(t, "https://tickets.example.com", c.BaseURL)
		})

		t.Run("invalid flags", func(t *testing.T) {
			c := NewConfig()

			err := c.ParseFlags([]string{
				"--invalid-flag", "value",
			})

			require.Error(t, err, "invalid flag should return an error")
		})
	})

	t.Run("validate", func(t *testing.T) {
		c := NewConfig()
		c.ClientID = "client-id"
		c.ClientSecret = "client-secret"
		c.CloudID = "cloud-id"
		c.SecretKey = "secret"

		require.NoError(t, c.Validate())

		c.SecretKey = ""
		require.Error(t, c.Validate(), "missing secret key should fail validation")
	})
}
