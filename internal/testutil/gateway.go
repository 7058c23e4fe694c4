package testutil

import (
	"context"
	"fmt"
	"sync"

	"ghedit-go/internal/codec"
	"ghedit-go/internal/ws"
)

type fakeFile struct {
	content string
	sha     string
	notBlob bool
}

// FakeGateway is an in-memory remote repository. Writes are conditional on
// the file's current hash, like the real contents API. Safe for concurrent use.
type FakeGateway struct {
	mu      sync.Mutex
	files   map[ws.Ref]*fakeFile
	counter int

	// Err, when set, is returned by every call.
	Err error
	// PutErr, when set, is returned by PutFile only.
	PutErr error

	User      *ws.User
	RateLimit ws.RateLimit

	Puts []ws.PutFileRequest
	Gets int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		files: make(map[ws.Ref]*fakeFile),
		User:  &ws.User{Login: "octocat", Name: "The Octocat"},
	}
}

// SetFile puts content on the remote as if another client had written it.
func (g *FakeGateway) SetFile(ref ws.Ref, content, sha string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[ref] = &fakeFile{content: content, sha: sha}
}

// SetDirectory makes ref resolve to something that is not a file.
func (g *FakeGateway) SetDirectory(ref ws.Ref) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[ref] = &fakeFile{notBlob: true}
}

// File returns the remote content and hash of ref.
func (g *FakeGateway) File(ref ws.Ref) (string, string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.files[ref]
	if !ok {
		return "", "", false
	}
	return f.content, f.sha, true
}

func (g *FakeGateway) GetFile(_ context.Context, ref ws.Ref) (ws.RemoteFile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Gets++

	if g.Err != nil {
		return ws.RemoteFile{}, g.Err
	}
	f, ok := g.files[ref]
	if !ok {
		return ws.RemoteFile{}, fmt.Errorf("not found: %s", ref)
	}
	if f.notBlob {
		return ws.RemoteFile{Kind: ws.NotBlobKind}, nil
	}
	return ws.RemoteFile{
		Kind:     ws.BlobKindFile,
		Encoding: codec.Encoding,
		Content:  codec.Encode(f.content),
		SHA:      f.sha,
	}, nil
}

func (g *FakeGateway) PutFile(_ context.Context, ref ws.Ref, req ws.PutFileRequest) (ws.PutFileResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Puts = append(g.Puts, req)

	if g.Err != nil {
		return ws.PutFileResult{}, g.Err
	}
	if g.PutErr != nil {
		return ws.PutFileResult{}, g.PutErr
	}

	f, ok := g.files[ref]
	if ok && f.sha != req.SHA {
		return ws.PutFileResult{}, &ws.ConflictError{Ref: ref, ExpectedSHA: req.SHA}
	}

	content, err := codec.Decode(req.Content)
	if err != nil {
		return ws.PutFileResult{}, err
	}

	g.counter++
	sha := fmt.Sprintf("sha-%d", g.counter)
	g.files[ref] = &fakeFile{content: content, sha: sha}
	return ws.PutFileResult{SHA: sha}, nil
}

func (g *FakeGateway) GetUser(context.Context) (*ws.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	u := *g.User
	return &u, nil
}

func (g *FakeGateway) GetRateLimit(context.Context) (ws.RateLimit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return ws.RateLimit{}, g.Err
	}
	return g.RateLimit, nil
}

// LastRateLimit reports RateLimit once it has been set, like a client that
// has seen rate-limit headers.
func (g *FakeGateway) LastRateLimit() (ws.RateLimit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.RateLimit, g.RateLimit != (ws.RateLimit{})
}

// FakeExchanger hands out Token for any code.
type FakeExchanger struct {
	Token string
	Err   error
	Codes []string
}

func (e *FakeExchanger) AuthCodeURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + state
}

func (e *FakeExchanger) ExchangeToken(_ context.Context, code, _ string) (string, error) {
	e.Codes = append(e.Codes, code)
	if e.Err != nil {
		return "", e.Err
	}
	return e.Token, nil
}

// StubNonceSource returns the configured nonces in order, then repeats the last.
type StubNonceSource struct {
	mu     sync.Mutex
	nonces []string
	next   int
}

func NewStubNonceSource(nonces ...string) *StubNonceSource {
	return &StubNonceSource{nonces: nonces}
}

func (s *StubNonceSource) Nonce() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.nonces) == 0 {
		return "", fmt.Errorf("no nonces configured")
	}
	n := s.nonces[s.next]
	if s.next < len(s.nonces)-1 {
		s.next++
	}
	return n, nil
}
