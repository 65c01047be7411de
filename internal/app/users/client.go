/*
Package users is the HTTP client for the external user-profile service.

The realtime service only needs one thing from it: the display name of a user whose credential
carried no name claim. Calls are made with the user's own bearer token.
*/
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pongrt/internal/app/user"
)

const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when the service does not know the user.
var ErrNotFound = errors.New("user not found")

// Client calls GET {BaseURL}/users/{id}.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL with a bounded request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

type profile struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Nickname    string `json:"nickname"`
}

func (p profile) bestName() string {
	for _, n := range []string{p.DisplayName, p.Name, p.Username, p.Nickname} {
		if s := strings.TrimSpace(n); s != "" {
			return s
		}
	}
	return ""
}

// LookupName returns the display name of identity. It implements presence.NameResolver.
func (c *Client) LookupName(ctx context.Context, identity user.Identity) (string, error) {
	url := fmt.Sprintf("%s/users/%d", c.BaseURL, identity.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build user lookup: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if identity.Token != "" {
		req.Header.Set("Authorization", "Bearer "+identity.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("user lookup %d: %w", identity.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read user lookup %d: %w", identity.ID, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("user %d: %w", identity.ID, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("user lookup %d returned %d", identity.ID, resp.StatusCode)
	}

	// Accept both a bare profile and one wrapped in {"data": ...}.
	var out struct {
		profile
		Data *profile `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode user lookup %d: %w", identity.ID, err)
	}
	if out.Data != nil {
		if name := out.Data.bestName(); name != "" {
			return name, nil
		}
	}
	return out.profile.bestName(), nil
}
