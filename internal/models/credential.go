package models

// Credential is an OAuth2 token pair as returned by the Atlassian token
// endpoint. Expiry is not tracked locally: access tokens are validated
// against the identity endpoint before use.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
