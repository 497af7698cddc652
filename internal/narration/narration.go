// Package narration synthesizes scene voiceovers.
package narration

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"vidforge/internal/config"
	"vidforge/internal/fileutil"
	"vidforge/internal/logging"
	"vidforge/internal/services"
)

// maxInputChars is the TTS endpoint's input limit.
const maxInputChars = 4096

// Request asks for one voiceover track.
type Request struct {
	Text       string
	Voice      string
	OutputPath string
}

// Synthesizer renders narration text to an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
}

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client       openai.Client
	model        string
	format       string
	defaultVoice string
	logger       *slog.Logger
}

// NewOpenAISynthesizer builds a synthesizer from cfg. Extra request options
// are appended after the config-derived ones.
func NewOpenAISynthesizer(cfg config.Narration, logger *slog.Logger, opts ...option.RequestOption) (*OpenAISynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "narration client", "api key required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(2 * time.Minute),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAISynthesizer{
		client:       openai.NewClient(append(base, opts...)...),
		model:        cfg.Model,
		format:       cfg.Format,
		defaultVoice: cfg.DefaultVoice,
		logger:       logging.NewComponentLogger(logger, "narration"),
	}, nil
}

// Synthesize writes the voiceover for req.Text to req.OutputPath.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "", "synthesize", "narration text is empty", nil)
	}
	if len(text) > maxInputChars {
		return "", services.Wrap(services.ErrValidation, "", "synthesize", fmt.Sprintf("narration is %d characters, limit %d", len(text), maxInputChars), nil)
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = s.defaultVoice
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(s.format),
	})
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "", "synthesize", "speech request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrProvider, "", "synthesize", fmt.Sprintf("speech request returned http %d", resp.StatusCode), nil)
	}
	if err := fileutil.WriteAtomic(req.OutputPath, resp.Body); err != nil {
		return "", services.Wrap(services.ErrProvider, "", "synthesize", "save audio", err)
	}
	logging.WithContext(ctx, s.logger).Debug("narration synthesized",
		logging.String("voice", voice),
		logging.Int("characters", len(text)),
		logging.String("audio_path", req.OutputPath),
	)
	return req.OutputPath, nil
}
