package jsoncfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"studio/internal/domain"
)

// ImageSettings configures text-to-image and image-to-image requests.
type ImageSettings struct {
	ImageSize         string  `json:"image_size"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumImages         int     `json:"num_images"`
	Seed              *int    `json:"seed,omitempty"`
}

// VideoSettings configures image-to-video requests.
type VideoSettings struct {
	Duration       string `json:"duration"`
	AspectRatio    string `json:"aspect_ratio"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// ProductShotSettings configures product placement requests.
type ProductShotSettings struct {
	SceneDescription string `json:"scene_description,omitempty"`
	PlacementType    string `json:"placement_type"`
	ShotWidth        int    `json:"shot_width"`
	ShotHeight       int    `json:"shot_height"`
	ManualPlacement  string `json:"manual_placement,omitempty"`
}

const (
	DefaultImageSize         = "square_hd"
	DefaultInferenceSteps    = 28
	MaxInferenceSteps        = 50
	DefaultGuidanceScale     = 3.5
	MaxGuidanceScale         = 20
	DefaultNumImages         = 1
	MaxNumImages             = 4
	DefaultVideoDuration     = "5"
	DefaultVideoAspectRatio  = "16:9"
	DefaultPlacementType     = "automatic"
	DefaultShotSize          = 1000
	MaxShotSize              = 4096
	minShotSize              = 100
)

var (
	allowedImageSizes = map[string]struct{}{
		"square_hd":      {},
		"square":         {},
		"portrait_4_3":   {},
		"portrait_16_9":  {},
		"landscape_4_3":  {},
		"landscape_16_9": {},
	}
	allowedDurations    = map[string]struct{}{"5": {}, "10": {}}
	allowedVideoAspects = map[string]struct{}{"16:9": {}, "9:16": {}, "1:1": {}}
	allowedPlacements   = map[string]struct{}{
		"original":         {},
		"automatic":        {},
		"manual_placement": {},
		"manual_padding":   {},
	}
	allowedManualPlacements = map[string]struct{}{
		"upper_left": {}, "upper_right": {}, "bottom_left": {}, "bottom_right": {},
		"right_center": {}, "left_center": {}, "upper_center": {}, "bottom_center": {},
		"center_vertical": {}, "center_horizontal": {},
	}
)

// Normalize applies server defaults.
func (s *ImageSettings) Normalize() {
	if s.ImageSize == "" {
		s.ImageSize = DefaultImageSize
	}
	if s.NumInferenceSteps <= 0 {
		s.NumInferenceSteps = DefaultInferenceSteps
	}
	if s.GuidanceScale <= 0 {
		s.GuidanceScale = DefaultGuidanceScale
	}
	if s.NumImages <= 0 {
		s.NumImages = DefaultNumImages
	}
}

// Validate checks ranges and enumerations after Normalize.
func (s ImageSettings) Validate() error {
	if _, ok := allowedImageSizes[s.ImageSize]; !ok {
		return invalid("settings.image_size", "unsupported size %q", s.ImageSize)
	}
	if s.NumInferenceSteps > MaxInferenceSteps {
		return invalid("settings.num_inference_steps", "must be between 1 and %d", MaxInferenceSteps)
	}
	if s.GuidanceScale > MaxGuidanceScale {
		return invalid("settings.guidance_scale", "must be at most %d", MaxGuidanceScale)
	}
	if s.NumImages > MaxNumImages {
		return invalid("settings.num_images", "must be between 1 and %d", MaxNumImages)
	}
	return nil
}

// Normalize applies server defaults.
func (s *VideoSettings) Normalize() {
	if s.Duration == "" {
		s.Duration = DefaultVideoDuration
	}
	if s.AspectRatio == "" {
		s.AspectRatio = DefaultVideoAspectRatio
	}
}

// Validate checks enumerations after Normalize.
func (s VideoSettings) Validate() error {
	if _, ok := allowedDurations[s.Duration]; !ok {
		return invalid("settings.duration", "must be 5 or 10 seconds")
	}
	if _, ok := allowedVideoAspects[s.AspectRatio]; !ok {
		return invalid("settings.aspect_ratio", "must be one of 16:9, 9:16, 1:1")
	}
	return nil
}

// Normalize applies server defaults.
func (s *ProductShotSettings) Normalize() {
	if s.PlacementType == "" {
		s.PlacementType = DefaultPlacementType
	}
	if s.ShotWidth <= 0 {
		s.ShotWidth = DefaultShotSize
	}
	if s.ShotHeight <= 0 {
		s.ShotHeight = DefaultShotSize
	}
}

// Validate checks ranges and enumerations after Normalize.
func (s ProductShotSettings) Validate() error {
	if _, ok := allowedPlacements[s.PlacementType]; !ok {
		return invalid("settings.placement_type", "unsupported placement %q", s.PlacementType)
	}
	if s.PlacementType == "manual_placement" {
		if _, ok := allowedManualPlacements[s.ManualPlacement]; !ok {
			return invalid("settings.manual_placement", "required when placement_type is manual_placement")
		}
	}
	if s.ShotWidth < minShotSize || s.ShotWidth > MaxShotSize || s.ShotHeight < minShotSize || s.ShotHeight > MaxShotSize {
		return invalid("settings.shot_size", "width and height must be between %d and %d", minShotSize, MaxShotSize)
	}
	return nil
}

// NormalizeSettings decodes kind-specific settings, applies defaults,
// validates them and returns the canonical encoding stored on the job.
func NormalizeSettings(kind domain.JobKind, raw json.RawMessage) (json.RawMessage, error) {
	switch kind {
	case domain.JobKindImage:
		var s ImageSettings
		if err := decode(raw, &s); err != nil {
			return nil, err
		}
		s.Normalize()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return MustMarshal(s), nil
	case domain.JobKindVideo:
		var s VideoSettings
		if err := decode(raw, &s); err != nil {
			return nil, err
		}
		s.Normalize()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return MustMarshal(s), nil
	case domain.JobKindProductShot:
		var s ProductShotSettings
		if err := decode(raw, &s); err != nil {
			return nil, err
		}
		s.Normalize()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return MustMarshal(s), nil
	default:
		return nil, invalid("kind", "unsupported kind %q", kind)
	}
}

func decode(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid("settings", "%s", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return &domain.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
