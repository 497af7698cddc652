package queue

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultName is the queue used for video generation jobs.
const DefaultName = "video-processing"

// ErrLeaseLost is returned when a delivery no longer owns its message.
var ErrLeaseLost = errors.New("queue lease lost")

// Payload is the job message body.
type Payload struct {
	JobID           string `json:"jobId"`
	VideoID         string `json:"videoId"`
	UserID          string `json:"userId"`
	StoryIdea       string `json:"storyIdea,omitempty"`
	Concept         string `json:"concept,omitempty"`
	MaxScenes       int    `json:"maxScenes,omitempty"`
	VoiceID         string `json:"voiceId,omitempty"`
	ProviderModelID string `json:"providerModelId,omitempty"`
}

// Idea returns the story idea, accepting the legacy concept field.
func (p Payload) Idea() string {
	if idea := strings.TrimSpace(p.StoryIdea); idea != "" {
		return idea
	}
	return strings.TrimSpace(p.Concept)
}

// Validate checks the fields every message must carry.
func (p Payload) Validate() error {
	switch {
	case strings.TrimSpace(p.JobID) == "":
		return errors.New("payload jobId is required")
	case strings.TrimSpace(p.VideoID) == "":
		return errors.New("payload videoId is required")
	case p.MaxScenes < 0:
		return errors.New("payload maxScenes must not be negative")
	}
	return nil
}

// Delivery is one leased message.
type Delivery struct {
	ID         string
	Token      string
	Payload    Payload
	Attempt    int
	EnqueuedAt time.Time
	LastError  string
}

// Stats summarizes queue depth.
type Stats struct {
	Ready   int
	Delayed int
	Leased  int
	Done    int
	Dead    int
}

// Queue is implemented by the SQL and Redis backends.
type Queue interface {
	Enqueue(ctx context.Context, payload Payload) (string, error)
	// Dequeue leases the next available message. It returns nil, nil when
	// nothing is ready.
	Dequeue(ctx context.Context, lease time.Duration) (*Delivery, error)
	Extend(ctx context.Context, d *Delivery, lease time.Duration) error
	Ack(ctx context.Context, d *Delivery, retain bool) error
	Retry(ctx context.Context, d *Delivery, delay time.Duration, reason string) error
	DeadLetter(ctx context.Context, d *Delivery, retain bool, reason string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
