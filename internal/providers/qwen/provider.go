package qwen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"studio/internal/domain"
	"studio/internal/domain/jsoncfg"
)

// sizes translates the shared image_size names into DashScope dimensions.
var sizes = map[string]string{
	"square_hd":      "1024*1024",
	"square":         "512*512",
	"portrait_4_3":   "768*1024",
	"portrait_16_9":  "720*1280",
	"landscape_4_3":  "1024*768",
	"landscape_16_9": "1280*720",
}

// Provider serves image jobs through DashScope image synthesis tasks.
type Provider struct {
	client *Client
	model  string
}

func NewImageProvider(client *Client, model string) *Provider {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "wanx2.1-t2i-turbo"
	}
	return &Provider{client: client, model: model}
}

func (p *Provider) Name() string {
	return ProviderName + ":" + p.model
}

// Kind returns the job kind this provider serves.
func (p *Provider) Kind() domain.JobKind {
	return domain.JobKindImage
}

func (p *Provider) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	var s jsoncfg.ImageSettings
	if len(req.Settings) > 0 {
		if err := json.Unmarshal(req.Settings, &s); err != nil {
			return "", fmt.Errorf("qwen: decode settings: %w", err)
		}
	}
	s.Normalize()
	size, ok := sizes[s.ImageSize]
	if !ok {
		size = sizes[jsoncfg.DefaultImageSize]
	}
	return p.client.CreateTask(ctx, TaskRequest{
		Model:       p.model,
		Prompt:      req.Prompt,
		RefImageURL: req.SourceImageURL,
		Size:        size,
		Count:       s.NumImages,
		Seed:        s.Seed,
	})
}

// Status reports the raw task state. Successful tasks carry no failure text.
func (p *Provider) Status(ctx context.Context, requestID string) (domain.StatusSnapshot, error) {
	task, err := p.client.Task(ctx, requestID)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	snap := domain.StatusSnapshot{RawStatus: task.Status, ResultURL: task.URL()}
	if !strings.EqualFold(task.Status, "SUCCEEDED") {
		snap.Error = task.Failure()
	}
	return snap, nil
}

func (p *Provider) FetchResult(ctx context.Context, requestID string) (string, error) {
	task, err := p.client.Task(ctx, requestID)
	if err != nil {
		return "", err
	}
	return task.URL(), nil
}

// Retry creates a fresh task; DashScope tasks cannot be restarted.
func (p *Provider) Retry(ctx context.Context, requestID string, req domain.SubmitRequest) (string, error) {
	p.client.logger.Info().
		Str("model", p.model).
		Str("job_id", req.JobID).
		Str("previous_request_id", requestID).
		Msg("qwen: creating replacement task")
	return p.Submit(ctx, req)
}

var _ domain.Provider = (*Provider)(nil)
