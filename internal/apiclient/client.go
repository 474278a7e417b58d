package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"courseattend/internal/metrics"
)

const loginPath = "/auth/login"

var (
	// ErrUnauthorized matches a 401 on any call other than login. The bound
	// credentials have already been cleared when it is returned.
	ErrUnauthorized = errors.New("apiclient: unauthorized")
	// ErrNetwork wraps transport failures where no response was received.
	ErrNetwork = errors.New("apiclient: network error")
)

// Credentials supplies the bearer token and is cleared on authorization failure.
type Credentials interface {
	Token() string
	Clear()
}

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string

	unauthorized bool
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("apiclient: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("apiclient: %s %s: %d", e.Method, e.Path, e.Status)
}

// Is lets errors.Is(err, ErrUnauthorized) match session-ending responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.unauthorized
}

// Message returns the backend-provided message carried by err, or fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Client calls the attendance REST backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	creds Credentials
}

// New creates a client without credentials.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// As returns a copy of the client bound to creds. A nil creds yields an
// anonymous client.
func (c *Client) As(creds Credentials) *Client {
	cp := *c
	cp.creds = creds
	return &cp
}

// File is a binary download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.send(ctx, method, path, query, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) getFile(ctx context.Context, path string, query url.Values, fallbackName string) (*File, error) {
	resp, err := c.send(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read %s: %w", path, err)
	}
	name := fallbackName
	if _, params, perr := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); perr == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return &File{Name: name, ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

// send issues the request and converts non-2xx responses into *APIError.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build %s %s: %w", method, path, err)
	}
	if contentType != "" && body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		if tok := c.creds.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resource := resourceOf(path)
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	metrics.APIDuration.WithLabelValues(resource, method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequests.WithLabelValues(resource, method, "error").Inc()
		return nil, fmt.Errorf("apiclient: %s %s: %w: %w", method, path, ErrNetwork, err)
	}
	metrics.APIRequests.WithLabelValues(resource, method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.responseError(resp, method, path)
	}
	return resp, nil
}

func (c *Client) responseError(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}

	if resp.StatusCode == http.StatusUnauthorized && !strings.HasPrefix(path, loginPath) {
		apiErr.unauthorized = true
		if c.creds != nil {
			c.creds.Clear()
		}
	}
	return apiErr
}

// resourceOf returns the first path segment, used as a metric label.
func resourceOf(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "root"
	}
	return p
}
