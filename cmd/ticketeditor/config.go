package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/stendavidson/jira-ticket-editor/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultStorePath    = "./credential-store"
	defaultBaseURL      = "http://localhost:8000"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Environment
	Environment string

	// Atlassian OAuth app credentials
	ClientID     string
	ClientSecret string

	// Jira cloud site the proxy targets
	CloudID string

	// Secret key
	// Used for cookie signing, the state nonce HMAC and sealing stored tokens
	SecretKey string

	// Directory for the embedded credential store
	StorePath string

	// Public URL of this service, used to build the OAuth redirect URI
	BaseURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		StorePath:   defaultStorePath,
		BaseURL:     defaultBaseURL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":   setString(&c.ListenAddr),
		"LOG_LEVEL":     setString(&c.LogLevel),
		"ENVIRONMENT":   setString(&c.Environment),
		"CLIENT_ID":     setString(&c.ClientID),
		"CLIENT_SECRET": setString(&c.ClientSecret),
		"CLOUD_ID":      setString(&c.CloudID),
		"SECRET_KEY":    setString(&c.SecretKey),
		"STORE_PATH":    setString(&c.StorePath),
		"BASE_URL":      setString(&c.BaseURL),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("ticketeditor", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.ClientID, "client-id", c.ClientID, "Atlassian OAuth client id")
	fs.StringVar(&c.ClientSecret, "client-secret", c.ClientSecret, "Atlassian OAuth client secret")
	fs.StringVar(&c.CloudID, "cloud-id", c.CloudID, "Jira cloud site id")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVar(&c.StorePath, "store", c.StorePath, "Credential store directory")
	fs.StringVarP(&c.BaseURL, "base-url", "b", c.BaseURL, "Public base URL of the service")

	return fs.Parse(args)
}

// Validate checks the options that have no usable defaults.
func (c *Config) Validate() error {
	required := map[string]string{
		"client id":     c.ClientID,
		"client secret": c.ClientSecret,
		"cloud id":      c.CloudID,
		"secret key":    c.SecretKey,
	}

	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	return nil
}
