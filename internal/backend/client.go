package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"genstudio-dashboard/internal/model"
)

const csrfHeader = "X-CSRF-Token"

// Client is the single choke point for calls to the generation backend. Each
// Client owns a cookie jar (the upstream session) and a cached CSRF token, so
// one Client per dashboard session keeps both under a single writer.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu   sync.Mutex
	csrf string
}

// NewClient builds a Client for the given base URL. Cookies are carried on
// every request, which is what gates the file and user-info endpoints.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Jar: jar},
	}, nil
}

// CSRFToken returns the cached token, fetching it from the backend on first
// use. The lock is held across the fetch so concurrent callers cannot race
// the token endpoint into more than one request.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.csrf != "" {
		return c.csrf, nil
	}

	resp, err := c.send(ctx, http.MethodGet, "/v1/csrf-token", "", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: csrf token endpoint returned status %d", ErrAuth, resp.StatusCode)
	}

	var env model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("%w: malformed csrf token response: %v", ErrAuth, err)
	}
	if !env.OK() {
		return "", fmt.Errorf("%w: csrf token endpoint returned code %d", ErrAuth, env.Code)
	}

	var token string
	if err := env.Decode(&token); err != nil || token == "" {
		return "", fmt.Errorf("%w: empty csrf token", ErrAuth)
	}

	c.csrf = token
	return token, nil
}

// ClearCSRFToken drops the cached token. Idempotent, no I/O. Called on
// logout; the next mutating request fetches a fresh token.
func (c *Client) ClearCSRFToken() {
	c.mu.Lock()
	c.csrf = ""
	c.mu.Unlock()
}

// Do issues a JSON request and decodes the response envelope. Transport
// failures and non-2xx statuses come back as ErrNetwork; application-level
// failures do not; callers branch on Envelope.Code. When needCSRF is set the
// cached token is attached, fetching it first if absent. No retries: a
// rejected token is refreshed only by an explicit new user action.
func (c *Client) Do(ctx context.Context, method, path string, body any, needCSRF bool) (model.Envelope, error) {
	var csrf string
	if needCSRF {
		token, err := c.CSRFToken(ctx)
		if err != nil {
			return model.Envelope{}, err
		}
		csrf = token
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return model.Envelope{}, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	resp, err := c.send(ctx, method, path, "application/json", reader, csrf)
	if err != nil {
		return model.Envelope{}, err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, method, path)
}

// Upload sends a file as multipart/form-data to POST /v1/upload. The CSRF
// token is attached; Content-Type carries the multipart boundary instead of
// JSON.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) (model.Envelope, error) {
	token, err := c.CSRFToken(ctx)
	if err != nil {
		return model.Envelope{}, err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return model.Envelope{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return model.Envelope{}, fmt.Errorf("reading upload %q: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return model.Envelope{}, err
	}

	resp, err := c.send(ctx, http.MethodPost, "/v1/upload", form.FormDataContentType(), &buf, token)
	if err != nil {
		return model.Envelope{}, err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, http.MethodPost, "/v1/upload")
}

// FetchFile retrieves the raw bytes behind an opaque server-side file path
// via the cookie-gated file endpoint. No CSRF is required. The response body
// is treated as an opaque blob.
func (c *Client) FetchFile(ctx context.Context, filepath string) ([]byte, string, error) {
	path := "/v1/file?f=" + url.QueryEscape(filepath)
	resp, err := c.send(ctx, http.MethodGet, path, "", nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: fetching file: status %d", ErrNetwork, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading file body: %v", ErrNetwork, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, csrf string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if csrf != "" {
		req.Header.Set(csrfHeader, csrf)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	return resp, nil
}

func decodeEnvelope(resp *http.Response, method, path string) (model.Envelope, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Envelope{}, fmt.Errorf("%w: %s %s: status %d", ErrNetwork, method, path, resp.StatusCode)
	}
	var env model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return model.Envelope{}, fmt.Errorf("%w: %s %s: decoding envelope: %v", ErrNetwork, method, path, err)
	}
	return env, nil
}
