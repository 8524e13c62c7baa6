// Package api is the HTTP client for the notes server that stores task files.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-tasks/pkg/forest"
	"github.com/mattsolo1/grove-tasks/pkg/models"
)

const defaultTimeout = 30 * time.Second

// StatusError is returned for any response outside 2xx (and 304 where a
// conditional request allows it).
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to the notes server. It implements forest.Transport.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  logrus.FieldLogger
}

var _ forest.Transport = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server url is not configured")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// escapePath escapes each segment of a note path while keeping the slashes.
func escapePath(p string) string {
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	target := c.baseURL.String() + endpoint
	if query != nil {
		target += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and returns the response when its status is 2xx, or 304 when
// allowNotModified is set. Any other status is drained into a StatusError.
func (c *Client) do(req *http.Request, allowNotModified bool) (*http.Response, error) {
	log := c.logger.WithField("method", req.Method).WithField("url", req.URL.Path)
	log.Debug("sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	if allowNotModified && resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.WithField("status", resp.StatusCode).Debug("request failed")
	return nil, &StatusError{
		Method: req.Method,
		Path:   req.URL.Path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// FetchForest returns the task forest. A non-empty etag makes the request
// conditional; a 304 yields NotModified.
func (c *Client) FetchForest(ctx context.Context, etag string) (forest.FetchResult, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v2/tasks", url.Values{"format": {"tree"}}, nil)
	if err != nil {
		return forest.FetchResult{}, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.do(req, true)
	if err != nil {
		return forest.FetchResult{}, err
	}
	defer resp.Body.Close()

	res := forest.FetchResult{ETag: resp.Header.Get("ETag")}
	if resp.StatusCode == http.StatusNotModified {
		res.NotModified = true
		if res.ETag == "" {
			res.ETag = etag
		}
		return res, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return forest.FetchResult{}, fmt.Errorf("failed to read task forest: %w", err)
	}
	res.Forest, err = decodeForest(raw)
	if err != nil {
		return forest.FetchResult{}, err
	}
	return res, nil
}

// decodeForest accepts either a list of root trees or a single tree.
func decodeForest(raw []byte) ([]*models.TreeNode, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var one models.TreeNode
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("failed to decode task forest: %w", err)
		}
		return []*models.TreeNode{&one}, nil
	}
	var list []*models.TreeNode
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("failed to decode task forest: %w", err)
	}
	return list, nil
}

type renameBody struct {
	Rename struct {
		From string `json:"from"`
	} `json:"Rename"`
}

// RenamePath moves the file at oldPath to newPath.
func (c *Client) RenamePath(ctx context.Context, oldPath, newPath string) error {
	var body renameBody
	body.Rename.From = oldPath

	req, err := c.newRequest(ctx, http.MethodPut, "/notes/"+escapePath(newPath), nil, body)
	if err != nil {
		return err
	}
	resp, err := c.do(req, false)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type saveBody struct {
	Save struct {
		Content string `json:"content"`
		Message string `json:"message"`
	} `json:"Save"`
}

// SaveFile writes content to path. An empty message becomes "Update <path>".
func (c *Client) SaveFile(ctx context.Context, path, content, message string) error {
	var body saveBody
	body.Save.Content = content
	body.Save.Message = message
	if message == "" {
		body.Save.Message = "Update " + path
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/notes/"+escapePath(path), nil, body)
	if err != nil {
		return err
	}
	resp, err := c.do(req, false)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteFile removes the file at path.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/notes/"+escapePath(path), nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req, false)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// File is the result of a conditional file read.
type File struct {
	ETag        string
	Content     []byte
	NotModified bool
}

// GetFile reads the raw content of path, conditionally on etag.
func (c *Client) GetFile(ctx context.Context, path, etag string) (File, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v2/files/"+escapePath(path), nil, nil)
	if err != nil {
		return File{}, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.do(req, true)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()

	f := File{ETag: resp.Header.Get("ETag")}
	if resp.StatusCode == http.StatusNotModified {
		f.NotModified = true
		return f, nil
	}
	f.Content, err = io.ReadAll(resp.Body)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// ListNotes returns every note with its frontmatter summary.
func (c *Client) ListNotes(ctx context.Context) ([]models.ListEntry, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/notes", nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []models.ListEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode note list: %w", err)
	}
	return entries, nil
}
