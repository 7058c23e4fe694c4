package github

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"ghedit-go/internal/config"
	"ghedit-go/internal/ws"
)

// Exchanger runs the web application flow of a GitHub OAuth app.
type Exchanger struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

var _ ws.TokenExchanger = (*Exchanger)(nil)

// NewExchanger creates an Exchanger for the OAuth app in cfg. httpClient may
// be nil.
func NewExchanger(cfg config.GitHubConfig, httpClient *http.Client) *Exchanger {
	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the authorize URL carrying state.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauth.AuthCodeURL(state)
}

// ExchangeToken trades code for an access token. The state has already been
// verified by the caller and is not sent again.
func (e *Exchanger) ExchangeToken(ctx context.Context, code, _ string) (string, error) {
	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	tok, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("github: exchanging code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("github: token endpoint returned no access token")
	}
	return tok.AccessToken, nil
}
