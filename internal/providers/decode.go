package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
	"strconv"
	"strings"

	"vidforge/internal/services"
)

func itoa(v int) string { return strconv.Itoa(v) }

// merge returns defaults overlaid with user values. The user wins.
func merge(defaults, user map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(user))
	maps.Copy(out, defaults)
	for k, v := range user {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// decodeInto maps loose values onto a typed config struct. Unknown keys and
// type mismatches are reported as field errors on verr.
func decodeInto(values map[string]any, target any, verr *services.ValidationError) {
	raw, err := json.Marshal(values)
	if err != nil {
		verr.Add("config", err.Error())
		return
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			verr.Add(typeErr.Field, "must be a "+typeErr.Type.String())
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			verr.Add(field, "is not supported by this model")
		default:
			verr.Add("config", err.Error())
		}
	}
}

// toValues converts a typed config back into its wire map.
func toValues(cfg any) map[string]any {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func checkAspect(caps Capabilities, ratio string, verr *services.ValidationError) {
	if ratio == "" {
		verr.Add("aspectRatio", "is required")
		return
	}
	if !caps.SupportsAspectRatio(ratio) {
		verr.AddIncompatible("aspectRatio", ratio+" is not supported (supported: "+strings.Join(caps.AspectRatios, ", ")+")")
	}
}

func checkDuration(caps Capabilities, seconds int, verr *services.ValidationError) {
	if seconds == 0 {
		return
	}
	if seconds < 0 {
		verr.Add("durationSeconds", "must be positive")
		return
	}
	if !caps.Durations.Allows(seconds) {
		verr.AddIncompatible("durationSeconds", itoa(seconds)+"s is outside "+caps.Durations.String())
	}
}
