package fal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"studio/internal/domain"
	"studio/internal/domain/jsoncfg"
)

type payloadBuilder func(req domain.SubmitRequest) (any, error)

// Provider adapts one queue model to domain.Provider for a single job kind.
type Provider struct {
	client *Client
	kind   domain.JobKind
	model  string
	build  payloadBuilder
}

// NewImageProvider serves text-to-image and image-to-image jobs.
func NewImageProvider(client *Client, model string) *Provider {
	return &Provider{client: client, kind: domain.JobKindImage, model: model, build: imagePayload}
}

// NewVideoProvider serves image-to-video jobs.
func NewVideoProvider(client *Client, model string) *Provider {
	return &Provider{client: client, kind: domain.JobKindVideo, model: model, build: videoPayload}
}

// NewProductShotProvider serves product shot jobs.
func NewProductShotProvider(client *Client, model string) *Provider {
	return &Provider{client: client, kind: domain.JobKindProductShot, model: model, build: productShotPayload}
}

func (p *Provider) Name() string {
	return ProviderName + ":" + p.model
}

// Kind returns the job kind this provider serves.
func (p *Provider) Kind() domain.JobKind {
	return p.kind
}

func (p *Provider) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	payload, err := p.build(req)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Submit(ctx, p.model, payload)
	if err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

func (p *Provider) Status(ctx context.Context, requestID string) (domain.StatusSnapshot, error) {
	resp, err := p.client.Status(ctx, p.model, requestID)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	snap := domain.StatusSnapshot{
		RawStatus: resp.Status,
		Error:     strings.TrimSpace(resp.Error),
	}
	if resp.Result != nil {
		snap.ResultURL = strings.TrimSpace(resp.Result.URL)
	}
	return snap, nil
}

func (p *Provider) FetchResult(ctx context.Context, requestID string) (string, error) {
	resp, err := p.client.Result(ctx, p.model, requestID)
	if err != nil {
		return "", err
	}
	return resp.URL(), nil
}

// Retry resubmits the stored payload. The queue API has no resume endpoint,
// so the previous request id is only logged.
func (p *Provider) Retry(ctx context.Context, requestID string, req domain.SubmitRequest) (string, error) {
	p.client.logger.Info().
		Str("model", p.model).
		Str("job_id", req.JobID).
		Str("previous_request_id", requestID).
		Msg("fal: resubmitting failed request")
	return p.Submit(ctx, req)
}

type imageRequest struct {
	Prompt              string  `json:"prompt"`
	ImageURL            string  `json:"image_url,omitempty"`
	ImageSize           string  `json:"image_size"`
	NumInferenceSteps   int     `json:"num_inference_steps"`
	GuidanceScale       float64 `json:"guidance_scale"`
	NumImages           int     `json:"num_images"`
	Seed                *int    `json:"seed,omitempty"`
	EnableSafetyChecker bool    `json:"enable_safety_checker"`
}

type videoRequest struct {
	Prompt         string `json:"prompt"`
	ImageURL       string `json:"image_url"`
	Duration       string `json:"duration"`
	AspectRatio    string `json:"aspect_ratio"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type productShotRequest struct {
	ImageURL         string `json:"image_url"`
	SceneDescription string `json:"scene_description"`
	PlacementType    string `json:"placement_type"`
	ShotSize         [2]int `json:"shot_size"`
	ManualPlacement  string `json:"manual_placement_selection,omitempty"`
	OptimizeDesc     bool   `json:"optimize_description"`
}

func imagePayload(req domain.SubmitRequest) (any, error) {
	var s jsoncfg.ImageSettings
	if err := decodeSettings(req.Settings, &s); err != nil {
		return nil, err
	}
	s.Normalize()
	return imageRequest{
		Prompt:              req.Prompt,
		ImageURL:            req.SourceImageURL,
		ImageSize:           s.ImageSize,
		NumInferenceSteps:   s.NumInferenceSteps,
		GuidanceScale:       s.GuidanceScale,
		NumImages:           s.NumImages,
		Seed:                s.Seed,
		EnableSafetyChecker: true,
	}, nil
}

func videoPayload(req domain.SubmitRequest) (any, error) {
	var s jsoncfg.VideoSettings
	if err := decodeSettings(req.Settings, &s); err != nil {
		return nil, err
	}
	s.Normalize()
	return videoRequest{
		Prompt:         req.Prompt,
		ImageURL:       req.SourceImageURL,
		Duration:       s.Duration,
		AspectRatio:    s.AspectRatio,
		NegativePrompt: s.NegativePrompt,
	}, nil
}

func productShotPayload(req domain.SubmitRequest) (any, error) {
	var s jsoncfg.ProductShotSettings
	if err := decodeSettings(req.Settings, &s); err != nil {
		return nil, err
	}
	s.Normalize()
	scene := strings.TrimSpace(s.SceneDescription)
	if scene == "" {
		scene = req.Prompt
	}
	return productShotRequest{
		ImageURL:         req.SourceImageURL,
		SceneDescription: scene,
		PlacementType:    s.PlacementType,
		ShotSize:         [2]int{s.ShotWidth, s.ShotHeight},
		ManualPlacement:  s.ManualPlacement,
		OptimizeDesc:     true,
	}, nil
}

func decodeSettings(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("fal: decode settings: %w", err)
	}
	return nil
}

var _ domain.Provider = (*Provider)(nil)
