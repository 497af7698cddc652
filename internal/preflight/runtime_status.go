package preflight

import (
	"strings"

	"vidforge/internal/config"
)

// CheckProviders reports which generation backends have credentials. It
// does not call the providers. At least one video provider is required.
func CheckProviders(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	veo := credentialResult("Veo", cfg.Providers.Veo.APIKey != "")
	kling := credentialResult("Kling", cfg.Providers.Kling.AccessKey != "" && cfg.Providers.Kling.SecretKey != "")
	if veo.Passed || kling.Passed {
		// One configured provider is enough.
		if !veo.Passed {
			veo = Result{Name: veo.Name, Passed: true, Detail: "Disabled"}
		}
		if !kling.Passed {
			kling = Result{Name: kling.Name, Passed: true, Detail: "Disabled"}
		}
	}
	narration := credentialResult("Narration", strings.TrimSpace(cfg.Narration.APIKey) != "")
	results := []Result{veo, kling, narration}
	if cfg.Storyboard.Enabled {
		key, missing := cfg.Providers.Veo.APIKey, "Missing Gemini API key"
		if cfg.Storyboard.Backend == "openai" {
			key, missing = cfg.Storyboard.APIKey, "Missing chat completion API key"
		}
		planner := credentialResult("Storyboard planner", strings.TrimSpace(key) != "")
		if !planner.Passed {
			planner.Detail = missing
		}
		results = append(results, planner)
	}
	return results
}

func credentialResult(name string, configured bool) Result {
	if configured {
		return Result{Name: name, Passed: true, Detail: "Configured"}
	}
	return Result{Name: name, Detail: "Missing API key"}
}
