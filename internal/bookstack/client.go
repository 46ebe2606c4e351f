package bookstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/containerd/errdefs"
	"github.com/sirupsen/logrus"

	"github.com/oculairmedia/Bookstack-MCP/internal/logger"
)

// API is the transport surface the services depend on. Client is the real
// implementation; tests substitute a mock.
type API interface {
	DoJSON(ctx context.Context, method, path string, params map[string]any, body map[string]any) (any, error)
	DoForm(ctx context.Context, method, path string, fields map[string]string, files map[string]*PreparedImage) (any, error)
	PrepareImage(ctx context.Context, image, fallbackName string) (*PreparedImage, error)
	CoverFromGallery(ctx context.Context, imageID int, fallbackName string) (*PreparedImage, error)
}

// ClientOptions configures the BookStack transport.
type ClientOptions struct {
	BaseURL        string
	TokenID        string
	TokenSecret    string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	FetchTimeout   time.Duration
	MaxRetries     uint64
	Metrics        *Metrics
}

// Client executes JSON and multipart requests against a BookStack instance.
// It attaches the static token header, maps error statuses to actionable
// hints, and retries 429/5xx with bounded exponential backoff.
type Client struct {
	baseURL     string
	tokenID     string
	tokenSecret string
	maxRetries  uint64

	jsonHTTP  *http.Client
	formHTTP  *http.Client
	imageHTTP *http.Client

	log     *logrus.Entry
	metrics *Metrics
}

func NewClient(opts ClientOptions) *Client {
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	uploadTimeout := opts.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = 120 * time.Second
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:     opts.BaseURL,
		tokenID:     opts.TokenID,
		tokenSecret: opts.TokenSecret,
		maxRetries:  opts.MaxRetries,
		jsonHTTP:    &http.Client{Timeout: requestTimeout},
		formHTTP:    &http.Client{Timeout: uploadTimeout},
		imageHTTP:   &http.Client{Timeout: fetchTimeout},
		log:         logger.WithComponent("bookstack-client"),
		metrics:     opts.Metrics,
	}
}

func (c *Client) authHeader() string {
	return fmt.Sprintf("Token %s:%s", c.tokenID, c.tokenSecret)
}

func (c *Client) requestURL(path string, params map[string]any) string {
	target := c.baseURL + path
	if len(params) == 0 {
		return target
	}
	values := url.Values{}
	for key, value := range params {
		values.Set(key, fmt.Sprint(value))
	}
	// url.Values.Encode sorts keys, keeping compiled requests deterministic.
	return target + "?" + values.Encode()
}

// DoJSON executes a JSON request. 204 and empty bodies map to
// {"success": true, "status": <code>}.
func (c *Client) DoJSON(ctx context.Context, method, path string, params map[string]any, body map[string]any) (any, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, invalidInput(
				"Request payload is not JSON-serializable",
				"", map[string]any{"error": err.Error()},
			)
		}
	}

	operation := func() (any, error) {
		c.metrics.remoteRequest()

		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.requestURL(path, params), reader)
		if err != nil {
			return nil, backoff.Permanent(invalidInput(
				"Cannot build BookStack API request",
				"", map[string]any{"method": method, "path": path, "error": err.Error()},
			))
		}
		req.Header.Set("Authorization", c.authHeader())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.jsonHTTP.Do(req)
		if err != nil {
			c.metrics.remoteError()
			e := &Error{
				Message: "Unable to reach the BookStack API endpoint",
				Hint:    "Check network connectivity and ensure the configured BookStack URL is reachable.",
				Context: map[string]any{"method": method, "path": path, "params": params},
			}
			return nil, e.WithCause(errdefs.ErrUnavailable)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.metrics.remoteError()
			failure := c.statusError(resp, method, path, map[string]any{
				"method":  method,
				"path":    path,
				"params":  params,
				"payload": body,
			})
			if retryableStatus(resp.StatusCode) {
				return nil, failure
			}
			return nil, backoff.Permanent(error(failure))
		}

		return c.decodeResponse(resp, method, path)
	}

	return backoff.RetryWithData(operation, c.newBackOff(ctx))
}

// DoForm executes a multipart/form-data request. Uploads are not retried:
// they are not idempotent against the remote.
func (c *Client) DoForm(ctx context.Context, method, path string, fields map[string]string, files map[string]*PreparedImage) (any, error) {
	c.metrics.remoteRequest()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, key := range sortedKeys(fields) {
		if err := writer.WriteField(key, fields[key]); err != nil {
			return nil, invalidInput(
				"Cannot encode multipart form field",
				"", map[string]any{"field": key, "error": err.Error()},
			)
		}
	}
	for _, name := range sortedFileKeys(files) {
		image := files[name]
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, image.Filename))
		header.Set("Content-Type", image.MimeType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, invalidInput(
				"Cannot encode multipart file part",
				"", map[string]any{"file": name, "error": err.Error()},
			)
		}
		if _, err := part.Write(image.Content); err != nil {
			return nil, invalidInput(
				"Cannot write multipart file content",
				"", map[string]any{"file": name, "error": err.Error()},
			)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, invalidInput(
			"Cannot finalize multipart request body",
			"", map[string]any{"error": err.Error()},
		)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, invalidInput(
			"Cannot build BookStack image request",
			"", map[string]any{"method": method, "path": path, "error": err.Error()},
		)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.formHTTP.Do(req)
	if err != nil {
		c.metrics.remoteError()
		e := &Error{
			Message: "Unable to reach the BookStack image endpoint",
			Hint:    "Check network connectivity and ensure the configured BookStack URL is accessible.",
			Context: map[string]any{"method": method, "path": path},
		}
		return nil, e.WithCause(errdefs.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.remoteError()
		return nil, c.statusError(resp, method, path, map[string]any{
			"method":     method,
			"path":       path,
			"data_keys":  sortedKeys(fields),
			"files_keys": sortedFileKeys(files),
		})
	}

	return c.decodeResponse(resp, method, path)
}

func (c *Client) decodeResponse(resp *http.Response, method, path string) (any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e := &Error{
			Message: "Failed to read BookStack API response",
			Context: map[string]any{"method": method, "path": path, "error": err.Error()},
		}
		return nil, backoff.Permanent(error(e.WithCause(errdefs.ErrUnavailable)))
	}
	if resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return map[string]any{"success": true, "status": resp.StatusCode}, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		e := &Error{
			Message: "BookStack API returned a non-JSON response",
			Hint:    "Inspect the response body to confirm the endpoint and authentication are correct.",
			Context: map[string]any{
				"method": method,
				"path":   path,
				"status": resp.StatusCode,
				"raw":    truncate(string(raw), 400),
			},
		}
		return nil, backoff.Permanent(error(e.WithCause(errdefs.ErrUnknown)))
	}
	return decoded, nil
}

// statusError builds the structured failure for a non-2xx response: status
// hint, extracted error detail, and a truncated body preview in the context.
func (c *Client) statusError(resp *http.Response, method, path string, context map[string]any) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	preview := truncate(string(raw), 400)

	detail := ""
	var errorBody map[string]any
	if err := json.Unmarshal(raw, &errorBody); err == nil {
		if msg, ok := errorBody["error"].(string); ok {
			detail = ": " + msg
		} else if inner, ok := errorBody["error"].(map[string]any); ok {
			if msg, ok := inner["message"].(string); ok {
				detail = ": " + msg
			}
		} else if msg, ok := errorBody["message"].(string); ok {
			detail = ": " + msg
		}
	}

	hint, sentinel := statusHint(resp.StatusCode)
	context["status"] = resp.StatusCode
	context["response_preview"] = preview

	c.log.Errorf("BookStack API request failed with HTTP %d: %s %s", resp.StatusCode, method, path)

	e := &Error{
		Message: fmt.Sprintf("BookStack API request failed with HTTP %d%s", resp.StatusCode, detail),
		Hint:    hint,
		Context: context,
	}
	return e.WithCause(sentinel)
}

// newBackOff builds the fixed bounded retry policy: exponential backoff,
// capped attempts, cancelled with the caller's context.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedFileKeys(m map[string]*PreparedImage) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
