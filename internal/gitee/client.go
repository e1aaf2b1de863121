// Package gitee implements the relay.Client contract against the Gitee v5
// content API. The mailbox is a single repository file: GET returns its
// base64 body plus a sha version token, PUT replaces it conditioned on
// that sha, and POST creates side files for binary payloads.
//
// Every method is exactly one network round trip with no internal retry or
// caching; retry policy belongs to the listener.
package gitee

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gitpigeon/pigeon/pkg/envelope"
	"github.com/gitpigeon/pigeon/pkg/relay"
)

// DefaultBaseURL is the public Gitee API endpoint.
const DefaultBaseURL = "https://gitee.com/api/v5"

// Fixed commit messages, matching the protocol's convention: mailbox
// rewrites say "response", side-file creates say "send file".
const (
	mailboxCommitMessage = "response"
	uploadCommitMessage  = "send file"
)

// Options identifies the repository and file acting as the mailbox.
type Options struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// AccessToken authenticates every call.
	AccessToken string

	// Owner and Repo name the repository.
	Owner string
	Repo  string

	// FilePath is the mailbox file path within the repository.
	FilePath string

	// HTTPClient overrides the transport. Defaults to a client with a
	// 30-second timeout.
	HTTPClient *http.Client
}

// Client talks to one mailbox file in one repository.
type Client struct {
	base     string
	token    string
	owner    string
	repo     string
	filePath string
	http     *http.Client
}

// NewClient validates options and builds a client.
func NewClient(opts Options) (*Client, error) {
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("gitee: access token is required")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("gitee: owner and repo are required")
	}
	if opts.FilePath == "" {
		return nil, fmt.Errorf("gitee: mailbox file path is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:     base,
		token:    opts.AccessToken,
		owner:    opts.Owner,
		repo:     opts.Repo,
		filePath: opts.FilePath,
		http:     httpClient,
	}, nil
}

// contentResponse is the subset of the content API's GET payload the relay
// needs: the base64 file body and the sha acting as version token.
type contentResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// Fetch implements relay.Client.
func (c *Client) Fetch(ctx context.Context) (envelope.Collection, string, error) {
	u := c.contentURL(c.filePath) + "?access_token=" + url.QueryEscape(c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", relay.NewNetworkError(c.filePath, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", relay.NewNetworkError(c.filePath, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", relay.NewNetworkError(c.filePath, readErr)
	}
	if err := c.classifyStatus(resp.StatusCode, c.filePath); err != nil {
		return nil, "", err
	}

	var content contentResponse
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, "", relay.NewDecodeError(c.filePath, err)
	}
	collection, err := envelope.DecodeBase64(content.Content)
	if err != nil {
		return nil, "", relay.NewDecodeError(c.filePath, err)
	}
	return collection, content.SHA, nil
}

// writeRequest is the conditional PUT payload. The sha must match the
// file's current version or the store rejects the write.
type writeRequest struct {
	AccessToken string `json:"access_token"`
	Content     string `json:"content"`
	SHA         string `json:"sha"`
	Message     string `json:"message"`
}

// Write implements relay.Client. A version mismatch surfaces as CONFLICT;
// the caller refetches and redoes its cycle.
func (c *Client) Write(ctx context.Context, collection envelope.Collection, version string) error {
	content, err := envelope.EncodeBase64(collection)
	if err != nil {
		return relay.NewDecodeError(c.filePath, err)
	}
	payload := writeRequest{
		AccessToken: c.token,
		Content:     content,
		SHA:         version,
		Message:     mailboxCommitMessage,
	}
	status, err := c.send(ctx, http.MethodPut, c.contentURL(c.filePath), payload)
	if err != nil {
		return relay.NewNetworkError(c.filePath, err)
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusConflict || status == http.StatusBadRequest || status == http.StatusPreconditionFailed:
		// The content API reports a stale sha as 400 or 409 depending
		// on deployment; both mean the file moved under us.
		return relay.NewConflictError(c.filePath, status)
	default:
		return c.classifyStatus(status, c.filePath)
	}
}

// createRequest is the side-file POST payload. No sha: creates only.
type createRequest struct {
	AccessToken string `json:"access_token"`
	Content     string `json:"content"`
	Message     string `json:"message"`
}

// Upload implements relay.Client. The caller chooses a collision-free
// name; an existing file surfaces as ALREADY_EXISTS.
func (c *Client) Upload(ctx context.Context, name string, data []byte) error {
	payload := createRequest{
		AccessToken: c.token,
		Content:     base64.StdEncoding.EncodeToString(data),
		Message:     uploadCommitMessage,
	}
	status, err := c.send(ctx, http.MethodPost, c.contentURL(name), payload)
	if err != nil {
		return relay.NewNetworkError(name, err)
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return relay.NewAlreadyExistsError(name)
	default:
		return c.classifyStatus(status, name)
	}
}

// send issues a JSON-body request and returns the response status. The
// response body is drained and discarded; callers classify by status.
func (c *Client) send(ctx context.Context, method, u string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// classifyStatus maps response codes onto the transport error taxonomy.
// 2xx maps to nil.
func (c *Client) classifyStatus(status int, path string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return relay.NewAuthError(path)
	case status == http.StatusNotFound:
		return relay.NewNotFoundError(path)
	default:
		return relay.NewNetworkError(path, fmt.Errorf("unexpected status %d", status))
	}
}

// contentURL builds the content-API URL for a path in the repository.
func (c *Client) contentURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.base, c.owner, c.repo, url.PathEscape(path))
}
