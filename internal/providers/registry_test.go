package providers_test

import (
	"errors"
	"reflect"
	"testing"

	"vidforge/internal/providers"
	"vidforge/internal/services"
)

func TestGetModelUnknown(t *testing.T) {
	reg := providers.NewRegistry()
	if _, err := reg.GetModel("sora-9"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModelsSortedAndRegistered(t *testing.T) {
	var ids []string
	for _, spec := range providers.NewRegistry().Models() {
		ids = append(ids, spec.ID())
	}
	want := []string{"kling-v2-master", "veo-2.0", "veo-3.0-fast"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("models = %v, want %v", ids, want)
	}
}

func TestValidateConfigMergesDefaults(t *testing.T) {
	reg := providers.NewRegistry()
	cfg, err := reg.ValidateConfig("veo-3.0-fast", map[string]any{"aspectRatio": "9:16", "durationSeconds": 6})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
	veo, ok := cfg.(providers.VeoConfig)
	if !ok {
		t.Fatalf("expected VeoConfig, got %T", cfg)
	}
	if veo.AspectRatio != "9:16" || veo.DurationSeconds != 6 || veo.Resolution != "720p" || veo.Model != "veo-3.0-fast" {
		t.Fatalf("unexpected merged config: %+v", veo)
	}
}

func TestValidateConfigIsIdempotent(t *testing.T) {
	reg := providers.NewRegistry()
	for _, tc := range []struct {
		model string
		user  map[string]any
	}{
		{"veo-3.0-fast", map[string]any{"negativePrompt": "  blur ", "seed": 7, "generateAudio": true}},
		{"veo-2.0", nil},
		{"kling-v2-master", map[string]any{"mode": "pro", "durationSeconds": 10, "aspectRatio": "1:1"}},
		{"kling-v2-master", map[string]any{"durationSeconds": 0}},
	} {
		first, err := reg.ValidateConfig(tc.model, tc.user)
		if err != nil {
			t.Fatalf("%s first validation: %v", tc.model, err)
		}
		second, err := reg.ValidateConfig(tc.model, first.Values())
		if err != nil {
			t.Fatalf("%s second validation: %v", tc.model, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("%s not idempotent: %+v vs %+v", tc.model, first, second)
		}
	}
}

func TestValidateConfigRejectsUnsupportedAspectRatio(t *testing.T) {
	reg := providers.NewRegistry()
	_, err := reg.ValidateConfig("veo-2.0", map[string]any{"aspectRatio": "1:1"})
	if !errors.Is(err, services.ErrIncompatible) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected incompatible capability, got %v", err)
	}
	var verr *services.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if _, ok := verr.FieldMessages()["aspectRatio"]; !ok {
		t.Fatalf("expected aspectRatio field message, got %v", verr.FieldMessages())
	}
	if services.Kind(err) != "incompatible_capability" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
}

func TestValidateConfigFieldErrors(t *testing.T) {
	reg := providers.NewRegistry()
	_, err := reg.ValidateConfig("kling-v2-master", map[string]any{"mode": "turbo", "cfgScale": 2, "fps": 60})
	var verr *services.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if errors.Is(err, services.ErrIncompatible) {
		t.Fatalf("plain field errors must not be incompatible: %v", err)
	}
	if _, ok := verr.FieldMessages()["fps"]; !ok {
		t.Fatalf("expected unknown field error, got %v", verr.FieldMessages())
	}

	_, err = reg.ValidateConfig("veo-3.0-fast", map[string]any{"durationSeconds": "long"})
	if !errors.As(err, &verr) || verr.FieldMessages()["durationSeconds"] == "" {
		t.Fatalf("expected type error on durationSeconds, got %v", err)
	}
}

func TestValidateConfigRejectsMismatchedModelID(t *testing.T) {
	reg := providers.NewRegistry()
	for _, id := range []string{"kling-v2-master", "veo-2.0"} {
		_, err := reg.ValidateConfig(id, map[string]any{"modelId": "veo-3.0-fast"})
		var verr *services.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", id, err)
		}
		if got := verr.FieldMessages()["modelId"]; got != "must be "+id {
			t.Fatalf("%s: unexpected modelId message %q", id, got)
		}
	}

	cfg, err := reg.ValidateConfig("veo-3.0-fast", map[string]any{"modelId": "veo-3.0-fast"})
	if err != nil {
		t.Fatalf("matching modelId: %v", err)
	}
	if cfg.(providers.VeoConfig).Model != "veo-3.0-fast" {
		t.Fatalf("unexpected model %+v", cfg)
	}
}

func TestCheckCompatibility(t *testing.T) {
	reg := providers.NewRegistry()
	cases := []struct {
		model    string
		aspect   string
		duration int
		ok       bool
	}{
		{"veo-3.0-fast", "16:9", 8, true},
		{"veo-3.0-fast", "16:9", 0, true},
		{"veo-3.0-fast", "16:9", 9, false},
		{"veo-2.0", "16:9", 4, false},
		{"kling-v2-master", "1:1", 10, true},
		{"kling-v2-master", "1:1", 7, false},
		{"veo-2.0", "4:3", 5, false},
	}
	for _, tc := range cases {
		err := reg.CheckCompatibility(tc.model, tc.aspect, tc.duration)
		if tc.ok && err != nil {
			t.Fatalf("%s %s %ds: unexpected error %v", tc.model, tc.aspect, tc.duration, err)
		}
		if !tc.ok && !errors.Is(err, services.ErrIncompatible) {
			t.Fatalf("%s %s %ds: expected incompatible, got %v", tc.model, tc.aspect, tc.duration, err)
		}
	}
}

func TestGeneratorRequiresConfiguredProvider(t *testing.T) {
	reg := providers.NewRegistry()
	if _, err := reg.Generator("kling-v2-master"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if reg.Configured(providers.ProviderKling) {
		t.Fatal("kling should not be configured")
	}
}
