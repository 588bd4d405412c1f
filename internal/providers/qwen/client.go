package qwen

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

// ProviderName identifies the DashScope task API in errors and logs.
const ProviderName = "qwen"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// Options configures the DashScope client.
type Options struct {
	APIKey         string
	BaseURL        string
	PromptExtend   bool
	Watermark      bool
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	RateLimit      float64
	Burst          int
}

// Client talks to the DashScope asynchronous task API. Image synthesis is
// created with the async header and then read back through /tasks/{id}.
type Client struct {
	apiKey       string
	baseURL      string
	promptExtend bool
	watermark    bool
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *infra.Logger
}

// TaskRequest captures the inputs of one synthesis task.
type TaskRequest struct {
	Model          string
	Prompt         string
	NegativePrompt string
	RefImageURL    string
	Size           string
	Count          int
	Seed           *int
}

// Task is the DashScope view of an asynchronous task.
type Task struct {
	ID      string       `json:"task_id"`
	Status  string       `json:"task_status"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Results []taskResult `json:"results,omitempty"`
}

type taskResult struct {
	URL     string `json:"url,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// URL returns the first generated artifact.
func (t Task) URL() string {
	for _, r := range t.Results {
		if u := strings.TrimSpace(r.URL); u != "" {
			return u
		}
	}
	return ""
}

// Failure summarises why a task failed, preferring the task level message.
func (t Task) Failure() string {
	if msg := strings.TrimSpace(t.Message); msg != "" {
		return msg
	}
	for _, r := range t.Results {
		if msg := strings.TrimSpace(r.Message); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(t.Code)
}

type synthesisRequest struct {
	Model      string          `json:"model"`
	Input      synthesisInput  `json:"input"`
	Parameters synthesisParams `json:"parameters"`
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	RefImage       string `json:"ref_img,omitempty"`
}

type synthesisParams struct {
	Size         string `json:"size"`
	N            int    `json:"n"`
	Seed         *int   `json:"seed,omitempty"`
	PromptExtend bool   `json:"prompt_extend"`
	Watermark    bool   `json:"watermark"`
}

type taskEnvelope struct {
	RequestID string `json:"request_id"`
	Output    Task   `json:"output"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("qwen: invalid base url: %w", err)
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
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		promptExtend: opts.PromptExtend,
		watermark:    opts.Watermark,
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateTask starts an image synthesis task and returns its task id.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("qwen: prompt is required")
	}
	n := req.Count
	if n <= 0 {
		n = 1
	}
	payload := synthesisRequest{
		Model: req.Model,
		Input: synthesisInput{
			Prompt:         prompt,
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			RefImage:       strings.TrimSpace(req.RefImageURL),
		},
		Parameters: synthesisParams{
			Size:         req.Size,
			N:            n,
			Seed:         req.Seed,
			PromptExtend: c.promptExtend,
			Watermark:    c.watermark,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("qwen: encode request: %w", err)
	}
	var decoded taskEnvelope
	endpoint := c.baseURL + "/services/aigc/text2image/image-synthesis"
	if err := c.do(ctx, http.MethodPost, endpoint, body, &decoded); err != nil {
		return "", err
	}
	taskID := strings.TrimSpace(decoded.Output.ID)
	if taskID == "" {
		return "", errors.New("qwen: create response missing task_id")
	}
	c.logger.Debug().
		Str("model", req.Model).
		Str("task_id", taskID).
		Str("request_id", decoded.RequestID).
		Msg("qwen: task created")
	return taskID, nil
}

// Task fetches the current state of a task.
func (c *Client) Task(ctx context.Context, taskID string) (*Task, error) {
	var decoded taskEnvelope
	endpoint := c.baseURL + "/tasks/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &decoded); err != nil {
		return nil, err
	}
	if decoded.Output.Status == "" {
		return nil, errors.New("qwen: task response missing task_status")
	}
	return &decoded.Output, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("qwen: rate limit: %w", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("qwen: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-DashScope-Async", "enable")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("qwen: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &domain.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("qwen: decode response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		if detail.Code != "" {
			return fmt.Sprintf("%s (%s)", detail.Message, detail.Code)
		}
		return detail.Message
	}
	return strings.TrimSpace(string(raw))
}
