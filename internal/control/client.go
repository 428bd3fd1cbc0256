package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
)

// Client talks to a running Server over its Unix socket.
type Client struct {
	http *http.Client
}

// NewClient returns a Client for socketPath. The socket itself is only connected to
// lazily, on the first request, so constructing a Client never fails.
func NewClient(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Stat fetches the current orchestrator snapshot.
func (c *Client) Stat(ctx context.Context) (StatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://control/stat", nil)
	if err != nil {
		return StatResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return StatResponse{}, fmt.Errorf("dial control socket: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StatResponse{}, fmt.Errorf("control socket: unexpected status %d", resp.StatusCode)
	}
	var out StatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatResponse{}, fmt.Errorf("decode stat response: %w", err)
	}
	return out, nil
}

// Purge asks the running process to invalidate ids, or everything it
// knows about if ids is empty.
func (c *Client) Purge(ctx context.Context, ids []string) error {
	body, err := json.Marshal(purgeRequest{IDs: ids})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://control/purge", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("control socket: unexpected status %d", resp.StatusCode)
	}
	return nil
}
