// Package upstream talks to the inventory REST backend: login, the product
// catalog, and the create/update/delete calls the console forwards.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

type tokenKey struct{}

// WithToken attaches the bearer token forwarded on every call made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token attached with WithToken.
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// Client calls the backend under BaseURL (for example http://localhost:3000/api).
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New returns a client. A nil httpClient gets DefaultTimeout; a nil logger logs nothing.
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Do sends body as JSON to method path and decodes a 2xx response into out.
// Any other status comes back as *APIError. out and body may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Result is the usual acknowledgement of a write.
type Result struct {
	ID       *int64            `json:"-"`
	Message  string            `json:"message,omitempty"`
	Warnings []json.RawMessage `json:"warnings,omitempty"`
}

// resultBody accepts the id under any of the names the backend uses.
type resultBody struct {
	IDVenta  *int64            `json:"id_venta"`
	IDCompra *int64            `json:"id_compra"`
	ID       *int64            `json:"id"`
	Message  string            `json:"message"`
	Warnings []json.RawMessage `json:"warnings"`
}

func (r resultBody) result() Result {
	out := Result{Message: r.Message, Warnings: r.Warnings}
	switch {
	case r.IDVenta != nil:
		out.ID = r.IDVenta
	case r.IDCompra != nil:
		out.ID = r.IDCompra
	default:
		out.ID = r.ID
	}
	return out
}

// Write sends a create, update or delete and returns the acknowledgement.
func (c *Client) Write(ctx context.Context, method, path string, body interface{}) (Result, error) {
	var rb resultBody
	if err := c.Do(ctx, method, path, body, &rb); err != nil {
		return Result{}, err
	}
	return rb.result(), nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, correo, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"correo": correo, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login: empty token in response")
	}
	return resp.Token, nil
}
