package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tonimelisma/globus-go/internal/tokens"
)

const defaultUserAgent = "globus-go/0.1"

// TokenSource resolves the bearer token for an API surface. *tokens.Store
// satisfies it.
type TokenSource interface {
	Get(surface tokens.Surface) (string, bool)
}

// Options describes one request. The zero value is a bodyless GET.
type Options struct {
	// Method defaults to GET.
	Method string
	// Header is merged over the dispatcher's defaults. Authorization is
	// always set by the dispatcher and cannot be overridden.
	Header http.Header
	// Query is merged into the URL's query string.
	Query url.Values
	// Body, if non-nil, is sent as JSON. json.RawMessage is sent verbatim.
	Body any
	// Form, if non-nil, is sent form-encoded. Takes precedence over Body.
	Form url.Values
}

// Dispatcher builds authenticated requests. It holds no mutable state and is
// safe for any number of concurrent calls; it never retries and imposes no
// ordering between calls.
type Dispatcher struct {
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	userAgent  string
}

// New creates a Dispatcher. A nil httpClient means http.DefaultClient; an
// empty userAgent means the built-in default.
func New(httpClient *http.Client, tokens TokenSource, logger *slog.Logger, userAgent string) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Dispatcher{
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
		userAgent:  userAgent,
	}
}

// Request sends one request to rawURL with the token for surface and returns
// the parsed JSON body. A status >= 400 yields *APIError; a failure to get a
// response at all wraps ErrTransport.
func (d *Dispatcher) Request(ctx context.Context, surface tokens.Surface, rawURL string, opts Options) (json.RawMessage, error) {
	tok, ok := d.tokens.Get(surface)
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrNoToken, surface)
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := d.newRequest(ctx, method, rawURL, opts)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s response: %w", ErrTransport, method, req.URL.Path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := newAPIError(resp, body)

		d.logger.Debug("request refused",
			slog.String("surface", string(surface)),
			slog.String("method", method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)

		return nil, apiErr
	}

	d.logger.Debug("request succeeded",
		slog.String("surface", string(surface)),
		slog.String("method", method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
	)

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("dispatch: %s %s: response is not JSON", method, req.URL.Path)
	}

	return json.RawMessage(body), nil
}

// newRequest assembles URL, body and headers. Defaults are applied first so
// caller headers win.
func (d *Dispatcher) newRequest(ctx context.Context, method, rawURL string, opts Options) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dispatch: parsing URL: %w", err)
	}

	if len(opts.Query) > 0 {
		q := u.Query()

		for k, vs := range opts.Query {
			q[k] = append(q[k], vs...)
		}

		u.RawQuery = q.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)

	switch {
	case opts.Form != nil:
		body = strings.NewReader(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case opts.Body != nil:
		data, err := encodeBody(opts.Body)
		if err != nil {
			return nil, err
		}

		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("dispatch: creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for k, vs := range opts.Header {
		if http.CanonicalHeaderKey(k) == "Authorization" {
			continue
		}

		req.Header.Del(k)

		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	return req, nil
}

func encodeBody(v any) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dispatch: encoding request body: %w", err)
	}

	return data, nil
}

// newAPIError reads the upstream error body. Non-JSON bodies keep their text
// as the message.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		HTTPStatus: resp.StatusCode,
		Err:        classifyStatus(resp.StatusCode),
	}

	trimmed := bytes.TrimSpace(body)
	if !gjson.ValidBytes(trimmed) || !gjson.ParseBytes(trimmed).IsObject() {
		apiErr.Message = string(trimmed)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		return apiErr
	}

	res := gjson.GetManyBytes(trimmed, "code", "message", "request_id", "resource")
	apiErr.Code = res[0].String()
	apiErr.Message = res[1].String()
	apiErr.RequestID = res[2].String()
	apiErr.Resource = res[3].String()
	apiErr.Body = json.RawMessage(trimmed)

	return apiErr
}

// Decode sends a request and unmarshals the JSON response into T.
func Decode[T any](ctx context.Context, d *Dispatcher, surface tokens.Surface, rawURL string, opts Options) (T, error) {
	var out T

	raw, err := d.Request(ctx, surface, rawURL, opts)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("dispatch: decoding response: %w", err)
	}

	return out, nil
}
