package storyboard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vidforge/internal/project"
	"vidforge/internal/services"
)

type fakeText struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeText) GenerateJSON(_ context.Context, _, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestPlanNormalizesFencedReply(t *testing.T) {
	text := &fakeText{reply: "```json\n" + `{"title":" Lighthouse ","tags":["Storm"," "],"scenes":[
		{"sceneNumber":3,"description":"keeper lights the lamp","voiceover":"The light returns."},
		{"sceneNumber":1,"description":"waves crash on rocks","voiceover":"The storm came fast."},
		{"sceneNumber":2,"description":"  ","voiceover":"dropped"},
		{"sceneNumber":7,"description":"ship turns away","voiceover":""}
	]}` + "\n```"}
	planner := newPlanner(text, "test", "gemini-test", 5, nil)

	board, err := planner.Plan(context.Background(), "a lighthouse keeper in a storm", 2)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !strings.Contains(text.prompt, "between 1 and 2 scenes") {
		t.Fatalf("scene limit missing from prompt: %q", text.prompt)
	}
	if board.Title != "Lighthouse" || len(board.Tags) != 1 || board.Tags[0] != "storm" {
		t.Fatalf("unexpected board header: %+v", board)
	}
	if len(board.Scenes) != 2 {
		t.Fatalf("expected 2 scenes after cap, got %d", len(board.Scenes))
	}
	if board.Scenes[0].Description != "waves crash on rocks" || board.Scenes[1].SceneNumber != 2 {
		t.Fatalf("unexpected scenes: %+v", board.Scenes)
	}
}

func TestPlanRejectsEmptyIdea(t *testing.T) {
	planner := newPlanner(&fakeText{}, "test", "m", 3, nil)
	if _, err := planner.Plan(context.Background(), "  ", 3); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPlanProviderFailure(t *testing.T) {
	planner := newPlanner(&fakeText{err: errors.New("quota")}, "test", "m", 3, nil)
	if _, err := planner.Plan(context.Background(), "idea", 3); !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	planner = newPlanner(&fakeText{reply: `{"scenes":[]}`}, "test", "m", 3, nil)
	if _, err := planner.Plan(context.Background(), "idea", 3); !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error for empty storyboard, got %v", err)
	}
}

func TestNormalizeFillsTitleAndVoiceover(t *testing.T) {
	board, err := Normalize(project.Storyboard{Scenes: []project.Scene{{Description: "A red kite over the dunes at dawn."}}}, 0)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if board.Title != "A red kite over the dunes" {
		t.Fatalf("unexpected title %q", board.Title)
	}
	if board.Scenes[0].Voiceover != "A red kite over the dunes at dawn." || board.Scenes[0].SceneNumber != 1 {
		t.Fatalf("unexpected scene %+v", board.Scenes[0])
	}
}
