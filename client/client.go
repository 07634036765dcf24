// Package client holds the pure client-side pieces of the password grant: the
// login form body with its extra domain field, and bearer-token extraction
// from the session payload a login or refresh returns.
//
// Nothing here performs I/O. Callers bring their own HTTP client; the package
// only builds bodies and reads them back.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// PasswordGrant is the form body for a password-grant login. Domain rides
// along with the standard grant fields; an empty Domain asks the server to
// auto-select, which succeeds only when the principal is authorized for
// exactly one domain.
type PasswordGrant struct {
	Username string
	Password string
	Domain   string

	// Optional standard grant fields, passed through untouched.
	Scope        string
	ClientID     string
	ClientSecret string
}

// Values renders the grant as form fields. grant_type is always "password",
// and the domain field is always present, even when empty.
func (g PasswordGrant) Values() url.Values {
	v := url.Values{}
	v.Set("grant_type", "password")
	v.Set("username", g.Username)
	v.Set("password", g.Password)
	v.Set("domain", g.Domain)
	if g.Scope != "" {
		v.Set("scope", g.Scope)
	}
	if g.ClientID != "" {
		v.Set("client_id", g.ClientID)
	}
	if g.ClientSecret != "" {
		v.Set("client_secret", g.ClientSecret)
	}
	return v
}

// Encode returns the URL-encoded request body for the grant, suitable for a
// POST with Content-Type application/x-www-form-urlencoded.
func (g PasswordGrant) Encode() string {
	return g.Values().Encode()
}

// ErrMalformedSession reports a session payload that is not valid JSON.
var ErrMalformedSession = errors.New("malformed session payload")

// ErrNoToken reports a session payload with no access token in it.
var ErrNoToken = errors.New("session carries no access token")

// Session is the JSON payload a login or refresh responds with. RefreshToken
// is empty when the server delivers it out of band, for example in a cookie.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// ParseSession decodes a login or refresh response body. A missing token_type
// defaults to "bearer".
func ParseSession(body []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if s.AccessToken == "" {
		return Session{}, ErrNoToken
	}
	if s.TokenType == "" {
		s.TokenType = "bearer"
	}
	return s, nil
}

// Bearer returns the Authorization header value for the session's access
// token.
func (s Session) Bearer() string {
	return "Bearer " + s.AccessToken
}

// Authorize stamps the session's bearer token onto an outgoing request.
func (s Session) Authorize(req *http.Request) {
	req.Header.Set("Authorization", s.Bearer())
}
