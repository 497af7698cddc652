// Package providers holds the registry of video generation models and the
// clients that talk to each provider.
//
// Every model is a ModelSpec with fixed capabilities and a typed config
// struct. ValidateConfig merges a caller's loose key/value config over the
// model defaults, decodes it into the typed struct and validates it against
// the model's capabilities, so downstream stages only ever see a ModelConfig
// that the provider accepts. The registry never falls back to a different
// model or provider; an unknown id or unsupported capability is an error.
package providers
