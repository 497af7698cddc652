package providers

import (
	"time"

	"vidforge/internal/services"
)

// KlingConfig is the typed config for Kling models.
type KlingConfig struct {
	Model           string  `json:"modelId"`
	AspectRatio     string  `json:"aspectRatio"`
	DurationSeconds int     `json:"durationSeconds"`
	Mode            string  `json:"mode"`
	CFGScale        float64 `json:"cfgScale"`
	NegativePrompt  string  `json:"negativePrompt,omitempty"`
}

func (c KlingConfig) ModelID() string        { return c.Model }
func (c KlingConfig) Aspect() string         { return c.AspectRatio }
func (c KlingConfig) Duration() int          { return c.DurationSeconds }
func (c KlingConfig) Values() map[string]any { return toValues(c) }

type klingModel struct {
	id           string
	capabilities Capabilities
}

func (m klingModel) ID() string                 { return m.id }
func (m klingModel) Provider() ProviderID       { return ProviderKling }
func (m klingModel) Capabilities() Capabilities { return m.capabilities }

func (m klingModel) Defaults() map[string]any {
	return map[string]any{
		"modelId":         m.id,
		"aspectRatio":     m.capabilities.AspectRatios[0],
		"durationSeconds": m.capabilities.Durations.Default(),
		"mode":            "std",
		"cfgScale":        0.5,
	}
}

func (m klingModel) decode(values map[string]any) (ModelConfig, error) {
	verr := &services.ValidationError{Subject: m.id}
	var cfg KlingConfig
	decodeInto(values, &cfg, verr)
	if cfg.Model != m.id {
		verr.Add("modelId", "must be "+m.id)
	}
	checkAspect(m.capabilities, cfg.AspectRatio, verr)
	checkDuration(m.capabilities, cfg.DurationSeconds, verr)
	if cfg.Mode != "std" && cfg.Mode != "pro" {
		verr.Add("mode", "must be std or pro")
	}
	if cfg.CFGScale < 0 || cfg.CFGScale > 1 {
		verr.Add("cfgScale", "must be between 0 and 1")
	}
	if len(cfg.NegativePrompt) > 2500 {
		verr.Add("negativePrompt", "must be at most 2500 characters")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func klingModels() []ModelSpec {
	return []ModelSpec{
		klingModel{
			id: "kling-v2-master",
			capabilities: Capabilities{
				AspectRatios:      []string{"16:9", "9:16", "1:1"},
				Resolutions:       []string{"720p"},
				Durations:         Durations{Fixed: []int{5, 10}},
				Features:          []string{"text-to-video"},
				CostPerSecond:     0.28,
				AverageProcessing: 4 * time.Minute,
			},
		},
	}
}
