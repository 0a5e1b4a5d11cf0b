package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stendavidson/jira-ticket-editor/internal/handlers"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/secrets"
	"github.com/stendavidson/jira-ticket-editor/internal/service/atlassian"
	"github.com/stendavidson/jira-ticket-editor/internal/service/auth"
	"github.com/stendavidson/jira-ticket-editor/internal/service/proxy"
	"github.com/stendavidson/jira-ticket-editor/internal/service/session"
	"github.com/stendavidson/jira-ticket-editor/internal/store"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger

	pebble *store.PebbleStore
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Open the embedded credential store
	pebbleStore, err := store.OpenPebble(c.StorePath)
	if err != nil {
		return nil, fmt.Errorf("error while opening credential store. Err: %w", err)
	}

	sealer, err := secrets.NewSealer(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("error while creating sealer. Err: %w", err)
	}
	elevated := store.NewElevatedCredentials(pebbleStore, sealer)

	// Initialize services
	atl := atlassian.NewClient(atlassian.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Logger:       log,
	})

	authService, err := auth.NewService(atl, elevated, c.SecretKey, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	cookies := session.NewManager(c.SecretKey, c.Environment == logger.EnvProduction)

	siteBase := "https://api.atlassian.com/ex/jira/" + c.CloudID
	apiUpstream, err := proxy.NewUpstream(siteBase+"/rest/api/3", nil, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating api upstream. Err: %w", err)
	}
	agileUpstream, err := proxy.NewUpstream(siteBase+"/rest/agile/1.0", nil, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating agile upstream. Err: %w", err)
	}

	// Initialize handlers
	oauthHandler := handlers.NewOAuth(authService, cookies, c.BaseURL, log)
	proxyHandler := handlers.NewProxy(apiUpstream, agileUpstream, atl, authService, cookies, log)

	mux := handlers.NewRouter(authService, oauthHandler, proxyHandler, cookies, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Logger:     log,
		pebble:     pebbleStore,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.Logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if closeErr := s.pebble.Close(); closeErr != nil {
		s.Logger.Error("failed to close credential store", "error", closeErr)
	}

	return err
}
