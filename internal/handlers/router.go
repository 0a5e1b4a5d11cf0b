package handlers

import (
	"net/http"

	"github.com/stendavidson/jira-ticket-editor/internal/handlers/middleware"
	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/service/session"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type routerAuthService interface {
	authService
	elevationService
	elevatedRefresher
}

func NewRouter(
	auth routerAuthService,
	oauthH *OAuthHandler,
	proxyH *ProxyHandler,
	cookies *session.Manager,
	log logger.Logger,
) http.Handler {
	elevationH := NewElevation(auth, log)

	gateway := middleware.AuthGateway(auth, cookies)
	withGateway := func(h http.Handler) http.Handler {
		return gateway(h)
	}
	gate := middleware.SessionGate(auth, cookies, "/login")

	root := http.NewServeMux()

	root.Handle("GET /internal/login", http.HandlerFunc(oauthH.login))
	root.Handle("GET /internal/authorize", http.HandlerFunc(oauthH.authorize))
	root.Handle("GET /internal/logout", http.HandlerFunc(oauthH.logout))
	root.Handle("/reflector", http.HandlerFunc(oauthH.reflector))
	root.Handle("POST /store-credentials", http.HandlerFunc(oauthH.storeCredentials))

	root.Handle("GET /internal/check-elevated", http.HandlerFunc(elevationH.checkElevated))
	root.Handle("DELETE /internal/deauthorize", withGateway(http.HandlerFunc(elevationH.deauthorize)))

	root.Handle("/proxy-api", withGateway(http.HandlerFunc(proxyH.relayAPI)))
	root.Handle("/proxy-agile", withGateway(http.HandlerFunc(proxyH.relayAgile)))

	root.Handle("GET /login", handleLoginPage())
	root.Handle("GET /authenticated/", gate(handleAppShell()))
	root.Handle("GET /{$}", http.RedirectHandler("/login", http.StatusFound))

	return chain(root,
		middleware.LoggerMiddleware(log),
	)
}
