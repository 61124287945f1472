package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/adamanr/hr_console/internal/entity"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	DefaultTimeout  = 30 * time.Second
	RequestIDHeader = "X-Request-ID"
)

// ErrNoToken is returned by a token source that has nothing to offer.
// The request then goes out without an Authorization header.
var ErrNoToken = errors.New("no access token")

// Client talks to the HR API and unwraps its response envelope.
// It never retries and never caches.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     oauth2.TokenSource
	logger     *slog.Logger
	metrics    *Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// FormFile is one file part of a multipart upload.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

func NewClient(baseURL string, tokens oauth2.TokenSource, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*entity.Envelope[json.RawMessage], error) {
	return c.doJSON(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*entity.Envelope[json.RawMessage], error) {
	return c.doJSON(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*entity.Envelope[json.RawMessage], error) {
	return c.doJSON(ctx, http.MethodPatch, path, nil, body)
}

// Update replaces a resource with PUT.
func (c *Client) Update(ctx context.Context, path string, body any) (*entity.Envelope[json.RawMessage], error) {
	return c.doJSON(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*entity.Envelope[json.RawMessage], error) {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// UploadFile posts file as multipart/form-data. The content type header
// carries the boundary chosen by the multipart writer.
func (c *Client) UploadFile(ctx context.Context, path string, file FormFile) (*entity.Envelope[json.RawMessage], error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreatePart(filePartHeader(file))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	if _, err = io.Copy(part, file.Content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType())
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any) (*entity.Envelope[json.RawMessage], error) {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.logger.Error("Error marshaling request body", slog.String("error", err.Error()))
			return nil, fmt.Errorf("marshal request body: %w", err)
		}

		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	return c.do(ctx, method, path, query, reader, contentType)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*entity.Envelope[json.RawMessage], error) {
	target, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(RequestIDHeader, requestID)

	if err = c.authorize(req); err != nil {
		return nil, err
	}

	logger := c.logger.With(
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", path),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(method, path, 0, time.Since(start))
		logger.Error("Error sending API request", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.observe(method, path, resp.StatusCode, time.Since(start))
	if err != nil {
		logger.Error("Error reading API response", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, data)
		logger.Warn("API request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("message", apiErr.Message),
			slog.Duration("duration", time.Since(start)),
		)

		return nil, apiErr
	}

	logger.Debug("API request",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	env, err := decodeEnvelope(data)
	if err != nil {
		logger.Error("Error decoding API response", slog.String("error", err.Error()))
		return nil, err
	}

	return env, nil
}

func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}

	tok, err := c.tokens.Token()
	if errors.Is(err, ErrNoToken) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}

	if tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	}

	return nil
}

// resolve joins an already escaped API path onto the base URL.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}

	u := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

// decodeEnvelope requires a JSON object but does not force the envelope
// fields to their expected types; callers narrow Data through a schema.
func decodeEnvelope(data []byte) (*entity.Envelope[json.RawMessage], error) {
	env := &entity.Envelope[json.RawMessage]{}

	if len(bytes.TrimSpace(data)) == 0 {
		env.Success = true
		return env, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	_ = json.Unmarshal(fields["success"], &env.Success)
	_ = json.Unmarshal(fields["message"], &env.Message)
	env.Data = fields["data"]

	if raw, ok := fields["meta"]; ok {
		var meta entity.PaginationMeta
		if err := json.Unmarshal(raw, &meta); err == nil {
			env.Meta = &meta
		}
	}

	return env, nil
}

func filePartHeader(file FormFile) textproto.MIMEHeader {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(file.Field), escapeQuotes(file.Filename)))
	h.Set("Content-Type", contentType)

	return h
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
