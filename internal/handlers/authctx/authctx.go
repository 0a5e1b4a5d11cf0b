package authctx

import (
	"context"

	"github.com/stendavidson/jira-ticket-editor/internal/models"
)

type ctxKey string

const authTokensKey ctxKey = "authTokens"

// Create a new context with the resolved auth tokens
func New(ctx context.Context, t models.AuthTokens) context.Context {
	return context.WithValue(ctx, authTokensKey, t)
}

// Extract the resolved auth tokens from the context
func FromContext(ctx context.Context) (models.AuthTokens, bool) {
	t, ok := ctx.Value(authTokensKey).(models.AuthTokens)
	return t, ok
}
