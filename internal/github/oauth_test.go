package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"ghedit-go/internal/config"
)

func TestExchanger_AuthCodeURL(t *testing.T) {
	e := NewExchanger(config.GitHubConfig{
		AuthorizeURL: config.DefaultAuthorizeURL,
		TokenURL:     config.DefaultTokenURL,
		ClientID:     "Iv1.abc",
		Scopes:       []string{"repo"},
	}, nil)

	u, err := url.Parse(e.AuthCodeURL("nonce-1"))
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	q := u.Query()
	if q.Get("state") != "nonce-1" {
		t.Errorf("state = %q, want nonce-1", q.Get("state"))
	}
	if q.Get("client_id") != "Iv1.abc" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("scope") != "repo" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
}

func TestExchanger_ExchangeToken(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("code") != "code-1" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		if r.PostForm.Get("client_secret") != "shh" {
			t.Errorf("client_secret = %q", r.PostForm.Get("client_secret"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_xyz","token_type":"bearer","scope":"repo"}`))
	}))
	defer server.Close()

	e := NewExchanger(config.GitHubConfig{
		AuthorizeURL: server.URL + "/authorize",
		TokenURL:     server.URL + "/token",
		ClientID:     "Iv1.abc",
		ClientSecret: "shh",
	}, server.Client())

	tok, err := e.ExchangeToken(context.Background(), "code-1", "nonce")
	if err != nil {
		t.Fatalf("ExchangeToken() error = %v", err)
	}
	if tok != "gho_xyz" {
		t.Errorf("ExchangeToken() = %q, want gho_xyz", tok)
	}

	if _, err := e.ExchangeToken(context.Background(), "wrong", "nonce"); err == nil {
		t.Fatal("ExchangeToken() expected error for rejected code")
	}
}
