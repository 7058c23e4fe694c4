package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"ghedit-go/internal/codec"
	"ghedit-go/internal/ws"
)

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

type putContentRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type putContentResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// GetFile fetches ref at its branch. Directory listings, symlinks,
// submodules and files too large to be inlined come back as NotBlobKind.
func (c *Client) GetFile(ctx context.Context, ref ws.Ref) (ws.RemoteFile, error) {
	body, err := c.do(ctx, http.MethodGet, contentsPath(ref), url.Values{"ref": {ref.Branch}}, nil)
	if err != nil {
		return ws.RemoteFile{}, err
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		return ws.RemoteFile{Kind: ws.NotBlobKind}, nil
	}

	var resp contentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ws.RemoteFile{}, fmt.Errorf("github: decoding contents of %s: %w", ref, err)
	}

	kind := ws.NotBlobKind
	if resp.Type == "file" && resp.Encoding == codec.Encoding {
		kind = ws.BlobKindFile
	}
	return ws.RemoteFile{
		Kind:     kind,
		Encoding: resp.Encoding,
		Content:  resp.Content,
		SHA:      resp.SHA,
	}, nil
}

// PutFile writes ref conditionally on req.SHA. A stale SHA is reported as
// *ws.ConflictError.
func (c *Client) PutFile(ctx context.Context, ref ws.Ref, req ws.PutFileRequest) (ws.PutFileResult, error) {
	body, err := c.do(ctx, http.MethodPut, contentsPath(ref), nil, putContentRequest{
		Message: req.Message,
		Content: req.Content,
		SHA:     req.SHA,
		Branch:  ref.Branch,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return ws.PutFileResult{}, &ws.ConflictError{Ref: ref, ExpectedSHA: req.SHA, Message: apiErr.Message}
		}
		return ws.PutFileResult{}, err
	}

	var resp putContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ws.PutFileResult{}, fmt.Errorf("github: decoding write result for %s: %w", ref, err)
	}
	if resp.Content.SHA == "" {
		return ws.PutFileResult{}, fmt.Errorf("github: write result for %s has no sha", ref)
	}
	return ws.PutFileResult{SHA: resp.Content.SHA}, nil
}
