package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RemoteSnapshot is the authoritative remote copy of a draft for one form
// type. Remotely there is exactly one draft per user per form type and no
// history; a put fully replaces it.
type RemoteSnapshot struct {
	Data         json.RawMessage `json:"data"`
	LastModified time.Time       `json:"last_modified"`
}

// RemoteStore is the remote draft API as the engine consumes it. Every
// operation sends or receives a full snapshot, never a diff: remote writes
// are not ordered relative to local ones, so a partial update could land over
// a newer state.
type RemoteStore interface {
	Exists(ctx context.Context, formType string) (bool, error)
	Get(ctx context.Context, formType string) (*RemoteSnapshot, error)
	Put(ctx context.Context, formType string, data json.RawMessage) error
	Delete(ctx context.Context, formType string) error
}

// Client talks to the movedocs drafts API over HTTP. The token source is
// consulted per request so a refreshed credential is picked up without
// rebuilding the client.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

// NewClient builds a Client for the API at baseURL. httpClient nil falls back
// to a 15s-timeout default.
func NewClient(baseURL string, token func() string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		token:   token,
	}
}

func (c *Client) Exists(ctx context.Context, formType string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	err := c.do(ctx, http.MethodGet, c.draftURL(formType)+"/exists", nil, &out)
	if err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (c *Client) Get(ctx context.Context, formType string) (*RemoteSnapshot, error) {
	var snap RemoteSnapshot
	err := c.do(ctx, http.MethodGet, c.draftURL(formType), nil, &snap)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) Put(ctx context.Context, formType string, data json.RawMessage) error {
	body, err := json.Marshal(map[string]json.RawMessage{"data": data})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.draftURL(formType), body, nil)
}

func (c *Client) Delete(ctx context.Context, formType string) error {
	err := c.do(ctx, http.MethodDelete, c.draftURL(formType), nil, nil)
	if isNotFound(err) {
		// already gone; clearing is idempotent
		return nil
	}
	return err
}

func (c *Client) draftURL(formType string) string {
	return c.baseURL + "/drafts/" + url.PathEscape(formType)
}

// statusError carries the HTTP status of a failed request.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("remote draft api: %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("remote draft api: %d", e.code)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(b))}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
