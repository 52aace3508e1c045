// Package identity implements the IdentityClient capability against the
// identity server's HTTP API. Wire-level error shapes are translated into
// the typed errors of the access package here, at the boundary; consumers
// never inspect response bodies.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"didstore/internal/access"
)

// invalidDIDMessage is the server's "unknown identity" marker in a fail
// response body.
const invalidDIDMessage = "Invalid DID specified"

// Client talks to an identity server over HTTP. Per-call credentials are
// presented as basic auth (username = DID, password = consent signature);
// the client itself holds no ambient authentication state.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ access.IdentityClient = (*Client)(nil)

// NewClient creates a client for the identity server at endpoint.
// httpClient may be nil for a default with a 30s timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpClient,
	}
}

// userResponse is the server's envelope for user endpoints.
type userResponse struct {
	Status string             `json:"status"`
	User   *access.UserRecord `json:"user"`
	Data   struct {
		DID string `json:"did"`
	} `json:"data"`
}

// GetUser fetches the per-app user record for a DID.
func (c *Client) GetUser(ctx context.Context, auth access.RequestAuth, did string) (*access.UserRecord, error) {
	endpoint := c.endpoint + "/user/get?did=" + url.QueryEscape(did)
	return c.do(ctx, http.MethodGet, endpoint, nil, &auth)
}

// CreateUser provisions a user record for a DID.
func (c *Client) CreateUser(ctx context.Context, auth access.RequestAuth, did, password string) (*access.UserRecord, error) {
	body := map[string]string{"did": did, "password": password}
	return c.do(ctx, http.MethodPost, c.endpoint+"/user/create", body, &auth)
}

// GetPublicUser returns the registry's public credential record.
func (c *Client) GetPublicUser(ctx context.Context) (*access.UserRecord, error) {
	return c.do(ctx, http.MethodGet, c.endpoint+"/user/public", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, auth *access.RequestAuth) (*access.UserRecord, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Signature)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling identity server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading identity server response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("identity server %s: %w", resp.Status, access.ErrUnauthorized)
	}

	var parsed userResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding identity server response (%s): %w", resp.Status, err)
	}

	if parsed.Data.DID == invalidDIDMessage {
		return nil, fmt.Errorf("identity server: %w", access.ErrIdentityNotFound)
	}
	if resp.StatusCode != http.StatusOK || parsed.User == nil {
		return nil, fmt.Errorf("identity server returned %s with no user record", resp.Status)
	}
	return parsed.User, nil
}
