package google

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultTokenURI is used when a credentials file does not name a token endpoint.
const DefaultTokenURI = "https://oauth2.googleapis.com/token"

// expiryLayout is the layout written to credentials files. google-auth
// writes naive UTC timestamps, optionally with fractional seconds.
const expiryLayout = "2006-01-02T15:04:05"

// Credentials is the authorized-user JSON document persisted per account.
type Credentials struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry,omitempty"`
}

// NewCredentials builds the persisted form of tok issued for conf.
func NewCredentials(conf *oauth2.Config, tok *oauth2.Token) *Credentials {
	c := &Credentials{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     DefaultTokenURI,
		Scopes:       Scopes(),
	}
	if conf != nil {
		c.ClientID = conf.ClientID
		c.ClientSecret = conf.ClientSecret
		if conf.Endpoint.TokenURL != "" {
			c.TokenURI = conf.Endpoint.TokenURL
		}
		if len(conf.Scopes) > 0 {
			c.Scopes = append([]string(nil), conf.Scopes...)
		}
	}
	c.setExpiry(tok.Expiry)
	return c
}

func (c *Credentials) setExpiry(t time.Time) {
	if t.IsZero() {
		c.Expiry = ""
		return
	}
	c.Expiry = t.UTC().Format(expiryLayout) + "Z"
}

// expiredAt stands in for an expiry that cannot be parsed, so the token is
// refreshed instead of being trusted forever.
var expiredAt = time.Unix(0, 0).UTC()

// ExpiryTime parses Expiry as RFC 3339, falling back to a naive UTC
// timestamp. A missing expiry yields the zero time; a malformed one yields a
// time in the past.
func (c *Credentials) ExpiryTime() time.Time {
	if c.Expiry == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, c.Expiry); err == nil {
		return t.UTC()
	}
	s := c.Expiry
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.ParseInLocation(expiryLayout, s, time.UTC)
	if err != nil {
		return expiredAt
	}
	return t
}

// OAuthToken converts the credentials into an oauth2 token.
func (c *Credentials) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.Token,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiryTime(),
	}
}

// OAuthConfig returns the client configuration needed to refresh the token.
func (c *Credentials) OAuthConfig() *oauth2.Config {
	tokenURI := c.TokenURI
	if tokenURI == "" {
		tokenURI = DefaultTokenURI
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  google.Endpoint.AuthURL,
			TokenURL: tokenURI,
		},
		Scopes: c.Scopes,
	}
}

// Update copies a refreshed token into the credentials.
func (c *Credentials) Update(tok *oauth2.Token) {
	c.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	c.setExpiry(tok.Expiry)
}

// LoadCredentials reads a credentials file, filling in defaults for missing
// token_uri and scopes.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}
	if c.TokenURI == "" {
		c.TokenURI = DefaultTokenURI
	}
	if len(c.Scopes) == 0 {
		c.Scopes = Scopes()
	}
	return &c, nil
}

// SaveCredentials writes c to path with owner-only permissions. The file is
// replaced atomically so readers never observe a partial document.
func SaveCredentials(path string, c *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credentials permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// LoadClientSecret reads a client_secret.json and returns the OAuth client
// configuration for the default scopes.
func LoadClientSecret(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf, err := google.ConfigFromJSON(data, Scopes()...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret %s: %w", path, err)
	}
	return conf, nil
}
