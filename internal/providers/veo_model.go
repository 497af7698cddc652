package providers

import (
	"slices"
	"strings"
	"time"

	"vidforge/internal/services"
)

// VeoConfig is the typed config for Google Veo models.
type VeoConfig struct {
	Model            string `json:"modelId"`
	AspectRatio      string `json:"aspectRatio"`
	DurationSeconds  int    `json:"durationSeconds"`
	Resolution       string `json:"resolution,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	GenerateAudio    bool   `json:"generateAudio"`
	Seed             int32  `json:"seed,omitempty"`
}

func (c VeoConfig) ModelID() string        { return c.Model }
func (c VeoConfig) Aspect() string         { return c.AspectRatio }
func (c VeoConfig) Duration() int          { return c.DurationSeconds }
func (c VeoConfig) Values() map[string]any { return toValues(c) }

var veoPersonGeneration = []string{"", "allow_all", "allow_adult", "dont_allow"}

type veoModel struct {
	id           string
	apiModel     string
	capabilities Capabilities
	audio        bool
}

func (m veoModel) ID() string                 { return m.id }
func (m veoModel) Provider() ProviderID       { return ProviderVeo }
func (m veoModel) Capabilities() Capabilities { return m.capabilities }

func (m veoModel) Defaults() map[string]any {
	return map[string]any{
		"modelId":         m.id,
		"aspectRatio":     m.capabilities.AspectRatios[0],
		"durationSeconds": m.capabilities.Durations.Default(),
		"resolution":      m.capabilities.Resolutions[0],
		"generateAudio":   false,
	}
}

func (m veoModel) decode(values map[string]any) (ModelConfig, error) {
	verr := &services.ValidationError{Subject: m.id}
	var cfg VeoConfig
	decodeInto(values, &cfg, verr)
	if cfg.Model != m.id {
		verr.Add("modelId", "must be "+m.id)
	}
	checkAspect(m.capabilities, cfg.AspectRatio, verr)
	checkDuration(m.capabilities, cfg.DurationSeconds, verr)
	if cfg.Resolution != "" && !slices.Contains(m.capabilities.Resolutions, cfg.Resolution) {
		verr.AddIncompatible("resolution", cfg.Resolution+" is not supported")
	}
	if !slices.Contains(veoPersonGeneration, cfg.PersonGeneration) {
		verr.Add("personGeneration", "must be one of allow_all, allow_adult, dont_allow")
	}
	if cfg.GenerateAudio && !m.audio {
		verr.AddIncompatible("generateAudio", "native audio is not supported")
	}
	if len(cfg.NegativePrompt) > 1000 {
		verr.Add("negativePrompt", "must be at most 1000 characters")
	}
	cfg.NegativePrompt = strings.TrimSpace(cfg.NegativePrompt)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func veoModels() []ModelSpec {
	return []ModelSpec{
		veoModel{
			id:       "veo-3.0-fast",
			apiModel: "veo-3.0-fast-generate-001",
			audio:    true,
			capabilities: Capabilities{
				AspectRatios:      []string{"16:9", "9:16"},
				Resolutions:       []string{"720p", "1080p"},
				Durations:         Durations{Min: 4, Max: 8},
				Features:          []string{"text-to-video", "native-audio"},
				CostPerSecond:     0.40,
				AverageProcessing: 90 * time.Second,
			},
		},
		veoModel{
			id:       "veo-2.0",
			apiModel: "veo-2.0-generate-001",
			capabilities: Capabilities{
				AspectRatios:      []string{"16:9", "9:16"},
				Resolutions:       []string{"720p"},
				Durations:         Durations{Min: 5, Max: 8},
				Features:          []string{"text-to-video"},
				CostPerSecond:     0.50,
				AverageProcessing: 120 * time.Second,
			},
		},
	}
}
