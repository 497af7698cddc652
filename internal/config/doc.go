// Package config loads, normalizes, and validates vidforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as DATABASE_URL, GEMINI_API_KEY, OPENAI_API_KEY and
// SUPABASE_URL. The Config type centralizes every knob the worker daemon and
// CLI need so queue, provider, storage and media settings are discovered in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical retention policies, and clear validation errors.
package config
