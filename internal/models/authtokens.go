package models

// AuthTokens is the union of primary and elevated credentials resolved for a
// single request. It lives in the request context only and is never persisted.
type AuthTokens struct {
	Primary Credential

	// Rotated is set when the primary pair was refreshed while resolving the
	// request, so rotated cookies must be written to the response.
	Rotated bool

	// Elevated is nil when no elevated credential is on file.
	Elevated *Credential

	// RequestingAccountID is the Atlassian accountId of the logged-in user.
	RequestingAccountID string

	// ElevatedAccountID is the accountId that authorized elevation, empty if none.
	ElevatedAccountID string
}
