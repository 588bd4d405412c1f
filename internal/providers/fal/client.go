package fal

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

	"golang.org/x/time/rate"

	"studio/internal/domain"
	"studio/internal/infra"
)

// ProviderName identifies the queue API in errors and logs.
const ProviderName = "fal"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the queue API client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	RateLimit      float64
	Burst          int
}

// Client performs HTTP calls against the queue-style generation API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *infra.Logger
}

// SubmitResponse is returned when a request enters the queue.
type SubmitResponse struct {
	RequestID   string `json:"request_id"`
	Status      string `json:"status"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// StatusResponse is the queue view of one request.
type StatusResponse struct {
	Status        string     `json:"status"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	Error         string     `json:"error,omitempty"`
	Result        *mediaFile `json:"result,omitempty"`
}

// ResultResponse covers the result shapes of the image, video and product
// shot models.
type ResultResponse struct {
	Images []mediaFile `json:"images,omitempty"`
	Image  *mediaFile  `json:"image,omitempty"`
	Video  *mediaFile  `json:"video,omitempty"`
	Result *mediaFile  `json:"result,omitempty"`
}

type mediaFile struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// URL returns the first artifact location in the response.
func (r ResultResponse) URL() string {
	if r.Video != nil && strings.TrimSpace(r.Video.URL) != "" {
		return strings.TrimSpace(r.Video.URL)
	}
	for _, img := range r.Images {
		if u := strings.TrimSpace(img.URL); u != "" {
			return u
		}
	}
	if r.Image != nil && strings.TrimSpace(r.Image.URL) != "" {
		return strings.TrimSpace(r.Image.URL)
	}
	if r.Result != nil {
		return strings.TrimSpace(r.Result.URL)
	}
	return ""
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("fal: invalid base url: %w", err)
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := infra.NopLogger()
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit enqueues a request for model with the given JSON payload.
func (c *Client) Submit(ctx context.Context, model string, payload any) (*SubmitResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fal: encode request: %w", err)
	}
	var decoded SubmitResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(model), body, &decoded); err != nil {
		return nil, err
	}
	if strings.TrimSpace(decoded.RequestID) == "" {
		return nil, errors.New("fal: submit response missing request_id")
	}
	c.logger.Debug().Str("model", model).Str("request_id", decoded.RequestID).Msg("fal: request queued")
	return &decoded, nil
}

// Status fetches the queue status of a request.
func (c *Client) Status(ctx context.Context, model, requestID string) (*StatusResponse, error) {
	var decoded StatusResponse
	endpoint := c.endpoint(model, "requests", requestID, "status")
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// Result fetches the output of a completed request.
func (c *Client) Result(ctx context.Context, model, requestID string) (*ResultResponse, error) {
	var decoded ResultResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(model, "requests", requestID), nil, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func (c *Client) endpoint(model string, parts ...string) string {
	segments := []string{c.baseURL, strings.Trim(model, "/")}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("fal: rate limit: %w", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("fal: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fal: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("fal: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &domain.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    errorDetail(raw),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fal: decode response: %w", err)
	}
	return nil
}

// errorDetail extracts the `detail` field the API uses for errors. It may be
// a string or a list of validation objects.
func errorDetail(raw []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			return text
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
