package apperrors

import (
	"errors"
)

var (
	ErrUnauthenticated = errors.New("no valid primary credential")
	ErrExchangeFailed  = errors.New("authorization code exchange failed")

	ErrNotElevated   = errors.New("no elevated credential stored")
	ErrOwnerMismatch = errors.New("authorizing account doesn't match logged-in account")

	ErrKeyNotFound = errors.New("key not found in credential store")

	ErrUpstreamUnavailable = errors.New("upstream request failed")
)
