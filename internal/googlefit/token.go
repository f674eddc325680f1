package googlefit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Credentials is the long-lived credential pair used to mint access tokens.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Validate fails with ErrConfiguration naming (never echoing) the missing values.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if strings.TrimSpace(c.RefreshToken) == "" {
		missing = append(missing, "GOOGLE_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// TokenProvider exchanges the refresh token for a fresh access token on every
// call. Nothing is cached; each metrics request pays for its own exchange.
type TokenProvider struct {
	creds      Credentials
	tokenURL   string
	httpClient *http.Client
}

// NewTokenProvider validates creds up front so a misconfigured process fails
// at construction instead of on a network round trip.
func NewTokenProvider(creds Credentials, tokenURL string, httpClient *http.Client) (*TokenProvider, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &TokenProvider{creds: creds, tokenURL: tokenURL, httpClient: httpClient}, nil
}

// AccessToken performs a single refresh_token grant. A rejection by the token
// endpoint comes back as *AuthError; there is no retry.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	if err := p.creds.Validate(); err != nil {
		return "", err
	}

	cfg := &oauth2.Config{
		ClientID:     p.creds.ClientID,
		ClientSecret: p.creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: p.tokenURL,
			// Google takes credentials in the form body. Setting this explicitly
			// also stops oauth2 from probing header auth first and retrying.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: p.creds.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return "", &AuthError{Status: status, Body: string(re.Body)}
		}
		return "", fmt.Errorf("token exchange: %w", err)
	}
	return tok.AccessToken, nil
}
