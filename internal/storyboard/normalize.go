package storyboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vidforge/internal/project"
)

// Normalize trims text, drops scenes without a description, keeps at most
// maxScenes and renumbers the rest from 1. Scenes without a voiceover are
// narrated with their description.
func Normalize(board project.Storyboard, maxScenes int) (*project.Storyboard, error) {
	out := project.Storyboard{
		Title:            strings.TrimSpace(board.Title),
		MusicDescription: strings.TrimSpace(board.MusicDescription),
	}
	for _, tag := range board.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out.Tags = append(out.Tags, tag)
		}
	}
	scenes := make([]project.Scene, 0, len(board.Scenes))
	for _, scene := range board.Scenes {
		description := strings.TrimSpace(scene.Description)
		if description == "" {
			continue
		}
		voiceover := strings.TrimSpace(scene.Voiceover)
		if voiceover == "" {
			voiceover = description
		}
		scenes = append(scenes, project.Scene{
			SceneNumber: scene.SceneNumber,
			Description: description,
			Voiceover:   voiceover,
		})
	}
	scenes = project.Renumber(scenes)
	if maxScenes > 0 && len(scenes) > maxScenes {
		scenes = scenes[:maxScenes]
	}
	if err := project.ValidateScenes(scenes); err != nil {
		return nil, err
	}
	if out.Title == "" {
		out.Title = firstWords(scenes[0].Description, 6)
	}
	out.Scenes = scenes
	return &out, nil
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,;:")
}

// decodeJSON unmarshals model output, tolerating code fences and prose
// around the JSON object.
func decodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), target); err != nil {
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet(trimmed))
	}
	return nil
}

func snippet(s string) string {
	const limit = 160
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
