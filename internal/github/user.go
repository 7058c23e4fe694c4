package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ghedit-go/internal/ws"
)

// GetUser returns the profile of the token's owner.
func (c *Client) GetUser(ctx context.Context) (*ws.User, error) {
	body, err := c.do(ctx, http.MethodGet, "/user", nil, nil)
	if err != nil {
		return nil, err
	}
	var user ws.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("github: decoding user: %w", err)
	}
	return &user, nil
}

type rateLimitResponse struct {
	Rate struct {
		Limit     int   `json:"limit"`
		Remaining int   `json:"remaining"`
		Reset     int64 `json:"reset"`
	} `json:"rate"`
}

// GetRateLimit queries the core quota. The call itself does not count
// against it.
func (c *Client) GetRateLimit(ctx context.Context) (ws.RateLimit, error) {
	body, err := c.do(ctx, http.MethodGet, "/rate_limit", nil, nil)
	if err != nil {
		return ws.RateLimit{}, err
	}
	var resp rateLimitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ws.RateLimit{}, fmt.Errorf("github: decoding rate limit: %w", err)
	}
	return ws.RateLimit{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     time.Unix(resp.Rate.Reset, 0).UTC(),
	}, nil
}
