package models

// Identity is the subset of the Atlassian identity endpoint response we care
// about. AccountID is the stable key used for the elevation ownership check.
type Identity struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}
