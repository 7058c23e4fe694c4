package ws

import (
	"context"
	"time"
)

// BlobKind tells a loadable file apart from anything else the remote returns
// for a path, such as a directory listing or a submodule.
type BlobKind int

const (
	NotBlobKind BlobKind = iota
	BlobKindFile
)

// RemoteFile is the result of fetching a path from the remote.
type RemoteFile struct {
	Kind     BlobKind
	Encoding string
	Content  string
	SHA      string
}

// PutFileRequest is a conditional write: it succeeds only when the remote
// file still has SHA.
type PutFileRequest struct {
	Content string
	SHA     string
	Message string
}

// PutFileResult carries the hash of the newly written content.
type PutFileResult struct {
	SHA string
}

// User is the authenticated user's profile.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// RateLimit holds the informational API quota counters.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Gateway is the remote repository API.
//
// PutFile returns an error matching ErrConflict when the expected hash is
// stale, and an error matching ErrUnauthorized when the token is rejected.
type Gateway interface {
	GetFile(ctx context.Context, ref Ref) (RemoteFile, error)
	PutFile(ctx context.Context, ref Ref, req PutFileRequest) (PutFileResult, error)
	GetUser(ctx context.Context) (*User, error)
	GetRateLimit(ctx context.Context) (RateLimit, error)
}

// TokenExchanger trades an OAuth authorization code for a bearer token.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	ExchangeToken(ctx context.Context, code, state string) (string, error)
}
