package providers

import (
	"context"
	"slices"
	"time"
)

// ProviderID names a generation backend.
type ProviderID string

const (
	ProviderVeo   ProviderID = "veo"
	ProviderKling ProviderID = "kling"
)

// Durations describes the clip lengths a model accepts: either a fixed
// list or an inclusive [Min, Max] range.
type Durations struct {
	Fixed []int `json:"fixed,omitempty"`
	Min   int   `json:"min,omitempty"`
	Max   int   `json:"max,omitempty"`
}

// Allows reports whether seconds is an accepted clip length.
func (d Durations) Allows(seconds int) bool {
	if len(d.Fixed) > 0 {
		return slices.Contains(d.Fixed, seconds)
	}
	return seconds >= d.Min && seconds <= d.Max
}

// Default returns the clip length used when a caller does not ask for one.
func (d Durations) Default() int {
	if len(d.Fixed) > 0 {
		return d.Fixed[0]
	}
	return d.Max
}

func (d Durations) String() string {
	if len(d.Fixed) > 0 {
		out := ""
		for i, v := range d.Fixed {
			if i > 0 {
				out += ","
			}
			out += itoa(v)
		}
		return "{" + out + "}s"
	}
	return itoa(d.Min) + "-" + itoa(d.Max) + "s"
}

// Capabilities lists what a model can produce.
type Capabilities struct {
	AspectRatios      []string      `json:"aspectRatios"`
	Resolutions       []string      `json:"resolutions"`
	Durations         Durations     `json:"durations"`
	Features          []string      `json:"features,omitempty"`
	CostPerSecond     float64       `json:"costPerSecond"`
	AverageProcessing time.Duration `json:"averageProcessing"`
}

// SupportsAspectRatio reports whether ratio is in the capability list.
func (c Capabilities) SupportsAspectRatio(ratio string) bool {
	return slices.Contains(c.AspectRatios, ratio)
}

// ModelConfig is a validated, provider-typed generation config.
type ModelConfig interface {
	ModelID() string
	Aspect() string
	Duration() int
	// Values returns the wire form of the config. Validating it again
	// yields an identical config.
	Values() map[string]any
}

// ModelSpec describes one registered model.
type ModelSpec interface {
	ID() string
	Provider() ProviderID
	Capabilities() Capabilities
	// Defaults returns the config values applied before user overrides.
	Defaults() map[string]any
	// decode converts merged values into the typed config and validates it.
	decode(values map[string]any) (ModelConfig, error)
}

// GenerateRequest asks a provider for one clip.
type GenerateRequest struct {
	Prompt     string
	Config     ModelConfig
	OutputPath string
}

// Clip is a generated video written to disk.
type Clip struct {
	Path            string
	DurationSeconds float64
	ProviderJobID   string
}

// Generator produces clips for every model of one provider.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Clip, error)
}
