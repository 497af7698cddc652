package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPayloadIdeaFallsBackToConcept(t *testing.T) {
	var p Payload
	if err := json.Unmarshal([]byte(`{"jobId":"j","videoId":"v","concept":" robots at sea "}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Idea() != "robots at sea" {
		t.Fatalf("unexpected idea %q", p.Idea())
	}
	p.StoryIdea = "whales"
	if p.Idea() != "whales" {
		t.Fatalf("storyIdea should win, got %q", p.Idea())
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	cases := map[int]time.Duration{1: 10 * time.Second, 2: 20 * time.Second, 3: 40 * time.Second}
	for attempt, want := range cases {
		if got := p.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
	if p.Exhausted(2) || !p.Exhausted(3) {
		t.Fatal("expected exhaustion at the third attempt")
	}
}
