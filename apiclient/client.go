// Package apiclient is a typed client for the r-chan REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds every call made by the client.
	DefaultTimeout = 10 * time.Second
	// DefaultAPIPort is where the backend listens when the base URL is derived from the host.
	DefaultAPIPort = "8080"

	maxResponseBytes = 8 << 20
)

// Client talks to the backend. A zero token means anonymous calls.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	http      *http.Client
	token     string
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// New returns an anonymous client for baseURL. A non-positive timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   timeout,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &http.Client{Timeout: c.timeout, Transport: c.transport}
	return c
}

// WithToken returns a copy of c that sends token as a bearer credential on every request.
func (c *Client) WithToken(token string) *Client {
	if token == "" {
		return c
	}
	cp := *c
	cp.token = token
	cp.http = &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.transport,
		},
	}
	return &cp
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Authenticated reports whether the client carries a bearer token.
func (c *Client) Authenticated() bool { return c.token != "" }

// ResolveBaseURL returns configured when set. Otherwise it derives http://<host>:<port> from
// the host the browser used, mapping localhost explicitly.
func ResolveBaseURL(configured, requestHost, port string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	if port == "" {
		port = DefaultAPIPort
	}
	host := requestHost
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "" || host == "localhost" {
		return "http://localhost:" + port
	}
	return "http://" + net.JoinHostPort(host, port)
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// fallback is used when an error body carries no message.
	fallback string
	// credentials marks login-style calls where 401/403 mean bad credentials.
	credentials bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", r.method, r.path, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &NetworkError{Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeSuccess(data, out)
	}

	// Non-JSON error bodies leave body empty so the generic message is used.
	var body errorBody
	_ = json.Unmarshal(data, &body)
	return classify(resp.StatusCode, body, data, r.fallback, r.credentials)
}

// decodeSuccess treats empty and non-JSON bodies as success with a zero value.
func decodeSuccess(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if out == nil || len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) sendJSON(ctx context.Context, r request, payload any, out any) error {
	if payload != nil {
		body, err := jsonBody(payload)
		if err != nil {
			return err
		}
		r.body = body
		r.contentType = "application/json"
	}
	return c.do(ctx, r, out)
}

func jsonBody(payload any) (io.Reader, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.NewReader(b), nil
}

// FilePart is an attachment sent in the multipart "file" field.
type FilePart struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// encodeMultipart builds a body with a JSON blob under field and an optional file part.
func encodeMultipart(field string, payload any, file *FilePart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", field, err)
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="blob"`, field))
	h.Set("Content-Type", "application/json")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := pw.Write(blob); err != nil {
		return nil, "", err
	}

	if file != nil && file.Reader != nil {
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		fh := textproto.MIMEHeader{}
		fh.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
		fh.Set("Content-Type", ct)
		fw, err := mw.CreatePart(fh)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(fw, file.Reader); err != nil {
			return nil, "", fmt.Errorf("copy attachment: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func (c *Client) sendMultipart(ctx context.Context, r request, field string, payload any, file *FilePart, out any) error {
	body, ct, err := encodeMultipart(field, payload, file)
	if err != nil {
		return err
	}
	r.body = body
	r.contentType = ct
	return c.do(ctx, r, out)
}

func pageQuery(page, size int, sort, direction string) url.Values {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("size", fmt.Sprint(size))
	if sort != "" {
		q.Set("sort", sort)
	}
	if direction != "" {
		q.Set("direction", direction)
	}
	return q
}

func idQuery(id string) url.Values {
	return url.Values{"id": []string{id}}
}

var errEmptyID = errors.New("id is required")
