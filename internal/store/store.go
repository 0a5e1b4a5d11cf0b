// Package store holds the process-wide credential store. It keeps at most one
// elevated token pair and the account that authorized it.
package store

// Keys used in the credential store. The three elevated keys are always
// written and deleted as one atomic unit.
const (
	KeyElevatedToken        = "elevatedToken"
	KeyElevatedRefreshToken = "elevatedRefreshToken"
	KeyAccountID            = "accountID"
)

// Store is a durable string key/value store. Get returns
// apperrors.ErrKeyNotFound for missing keys. SetAll and DeleteAll apply all
// changes atomically or not at all.
type Store interface {
	Get(key string) (string, error)
	Set(key string, value string) error
	Delete(key string) error

	SetAll(pairs map[string]string) error
	DeleteAll(keys ...string) error
}
