// Package slack is a minimal client for the two Web API touchpoints the
// sink needs: files.info metadata lookup and url_private downloads.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the production Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// FileInfo is the files.info result. Raw carries the full response document
// for archival; the parsed fields are only what the fetcher reads.
type FileInfo struct {
	Raw        json.RawMessage
	ID         string
	URLPrivate string
}

// Client calls the Slack Web API with a pre-configured bot credential.
type Client struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	token string
	http  *http.Client
}

// NewClient creates a Client authenticating with token.
func NewClient(token string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FileInfo fetches metadata for fileID, including its private download URL.
func (c *Client) FileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	endpoint := c.BaseURL + "/files.info?file=" + url.QueryEscape(fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build files.info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("files.info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("files.info returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read files.info response: %w", err)
	}

	var parsed struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		File  struct {
			ID         string `json:"id"`
			URLPrivate string `json:"url_private"`
		} `json:"file"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse files.info response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("files.info error: %s", parsed.Error)
	}
	if parsed.File.URLPrivate == "" {
		return nil, fmt.Errorf("files.info response has no url_private for %q", fileID)
	}

	return &FileInfo{
		Raw:        raw,
		ID:         parsed.File.ID,
		URLPrivate: parsed.File.URLPrivate,
	}, nil
}

// Download opens a stream of the attachment bytes at privateURL. The caller
// must close the returned reader. The body is never buffered here so large
// attachments stream straight to disk.
func (c *Client) Download(ctx context.Context, privateURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
