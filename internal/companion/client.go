package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rov-control/rovd/internal/config"
)

// ErrUnreachable is returned when the companion host does not answer.
var ErrUnreachable = errors.New("companion unreachable")

// maxBody bounds how much of a response is read.
const maxBody = 4 << 20

// StatusError reports an HTTP error status from the companion.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("companion %s %s: HTTP %d", e.Method, e.Path, e.Code)
}

// Document is one decoded JSON object.
type Document map[string]any

// Message returns the nested "message" object mavlink2rest wraps messages in.
func (d Document) Message() Document {
	if m, ok := d["message"].(map[string]any); ok {
		return Document(m)
	}
	return nil
}

// Float returns a numeric field.
func (d Document) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func okDocument() Document { return Document{"status": "ok"} }

// Client talks to one BlueOS instance.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for http://host:port with a per-request timeout.
func NewClient(host string, port int, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: "http://" + host + ":" + strconv.Itoa(port),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "companion"),
	}
}

// NewClientFromConfig creates a client from the companion settings.
func NewClientFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClient(cfg.CompanionHost, cfg.CompanionPort, cfg.CompanionTimeout, logger)
}

// NewClientForURL creates a client against an explicit base URL.
func NewClientForURL(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	c := NewClient("", 0, timeout, logger)
	c.baseURL = baseURL
	return c
}

// BaseURL returns the scheme://host:port prefix of every request.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs one request and decodes the JSON answer into out. It reports
// degraded=true when the body was not JSON.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (degraded bool, err error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("companion request failed", "method", method, "path", path, "error", err)
		return false, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return false, &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return false, fmt.Errorf("%w: read body: %w", ErrUnreachable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Debug("non-JSON companion response", "path", path, "content_type", resp.Header.Get("Content-Type"))
		return true, nil
	}
	return false, nil
}

func (c *Client) getDocument(ctx context.Context, path string) (Document, error) {
	var doc Document
	degraded, err := c.do(ctx, http.MethodGet, path, nil, &doc)
	if err != nil {
		return nil, err
	}
	if degraded || doc == nil {
		return okDocument(), nil
	}
	return doc, nil
}

func (c *Client) getList(ctx context.Context, path string) ([]Document, error) {
	var list []Document
	degraded, err := c.do(ctx, http.MethodGet, path, nil, &list)
	if err != nil {
		return nil, err
	}
	if degraded || list == nil {
		return []Document{}, nil
	}
	return list, nil
}

// getAny decodes any JSON value; system metric endpoints answer with
// objects or arrays depending on the BlueOS release.
func (c *Client) getAny(ctx context.Context, path string) (any, error) {
	var v any
	degraded, err := c.do(ctx, http.MethodGet, path, nil, &v)
	if err != nil {
		return nil, err
	}
	if degraded || v == nil {
		return okDocument(), nil
	}
	return v, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (Document, error) {
	var doc Document
	degraded, err := c.do(ctx, http.MethodPost, path, body, &doc)
	if err != nil {
		return nil, err
	}
	if degraded || doc == nil {
		return okDocument(), nil
	}
	return doc, nil
}
