package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"vidforge/internal/config"
	"vidforge/internal/fileutil"
	"vidforge/internal/logging"
	"vidforge/internal/services"
)

// veoAPI is the slice of the genai client the generator uses.
type veoAPI interface {
	GenerateVideos(ctx context.Context, model, prompt string, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	Poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, video *genai.GeneratedVideo) ([]byte, error)
}

type genaiVeo struct {
	client *genai.Client
}

func (g genaiVeo) GenerateVideos(ctx context.Context, model, prompt string, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return g.client.Models.GenerateVideos(ctx, model, prompt, nil, cfg)
}

func (g genaiVeo) Poll(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return g.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (g genaiVeo) Download(ctx context.Context, video *genai.GeneratedVideo) ([]byte, error) {
	return g.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(video), nil)
}

// VeoGenerator renders clips with Google Veo through the Gemini API.
type VeoGenerator struct {
	api          veoAPI
	apiModels    map[string]string
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewVeoGenerator connects a genai client using cfg.
func NewVeoGenerator(ctx context.Context, cfg config.Veo, logger *slog.Logger) (*VeoGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "veo client", "api key required", nil)
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "veo client", "create genai client", err)
	}
	return newVeoGenerator(genaiVeo{client: client}, time.Duration(cfg.PollSeconds)*time.Second, logger), nil
}

func newVeoGenerator(api veoAPI, poll time.Duration, logger *slog.Logger) *VeoGenerator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if poll <= 0 {
		poll = 10 * time.Second
	}
	models := map[string]string{}
	for _, spec := range veoModels() {
		m := spec.(veoModel)
		models[m.id] = m.apiModel
	}
	return &VeoGenerator{
		api:          api,
		apiModels:    models,
		pollInterval: poll,
		logger:       logging.NewComponentLogger(logger, "veo"),
	}
}

// Generate submits a Veo operation, waits for it, and writes the first video.
func (g *VeoGenerator) Generate(ctx context.Context, req GenerateRequest) (Clip, error) {
	cfg, ok := req.Config.(VeoConfig)
	if !ok {
		return Clip{}, services.Wrap(services.ErrConfiguration, "", "veo generate", fmt.Sprintf("unexpected config type %T", req.Config), nil)
	}
	apiModel, ok := g.apiModels[cfg.Model]
	if !ok {
		return Clip{}, services.Wrap(services.ErrNotFound, "", "veo generate", fmt.Sprintf("model %q has no veo mapping", cfg.Model), nil)
	}

	op, err := g.api.GenerateVideos(ctx, apiModel, req.Prompt, buildVeoConfig(cfg))
	if err != nil {
		return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", "submit operation", err)
	}
	logger := logging.WithContext(ctx, g.logger)
	logger.Debug("veo operation submitted", logging.String("operation", op.Name), logging.String("model", apiModel))

	for !op.Done {
		if err := sleepCtx(ctx, g.pollInterval); err != nil {
			return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", "wait for operation "+op.Name, err)
		}
		op, err = g.api.Poll(ctx, op)
		if err != nil {
			return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", "poll operation", err)
		}
	}
	if len(op.Error) > 0 {
		return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", fmt.Sprintf("operation %s failed: %v", op.Name, op.Error), nil)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0] == nil {
		reason := "no video returned"
		if op.Response != nil && len(op.Response.RAIMediaFilteredReasons) > 0 {
			reason = "filtered: " + strings.Join(op.Response.RAIMediaFilteredReasons, "; ")
		}
		return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", reason, nil)
	}

	generated := op.Response.GeneratedVideos[0]
	var data []byte
	if generated.Video != nil && len(generated.Video.VideoBytes) > 0 {
		data = generated.Video.VideoBytes
	} else {
		data, err = g.api.Download(ctx, generated)
		if err != nil {
			return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", "download video", err)
		}
	}
	if len(data) == 0 {
		return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", "downloaded video is empty", errors.New("zero bytes"))
	}
	if err := fileutil.WriteAtomic(req.OutputPath, bytes.NewReader(data)); err != nil {
		return Clip{}, services.Wrap(services.ErrProvider, "", "veo generate", "save clip", err)
	}
	logger.Debug("veo clip written", logging.String("clip_path", req.OutputPath), logging.Int("bytes", len(data)))
	return Clip{Path: req.OutputPath, DurationSeconds: float64(cfg.DurationSeconds), ProviderJobID: op.Name}, nil
}

func buildVeoConfig(cfg VeoConfig) *genai.GenerateVideosConfig {
	out := &genai.GenerateVideosConfig{
		NumberOfVideos:   1,
		AspectRatio:      cfg.AspectRatio,
		Resolution:       cfg.Resolution,
		NegativePrompt:   cfg.NegativePrompt,
		PersonGeneration: cfg.PersonGeneration,
	}
	if cfg.DurationSeconds > 0 {
		seconds := int32(cfg.DurationSeconds)
		out.DurationSeconds = &seconds
	}
	if cfg.Seed != 0 {
		seed := cfg.Seed
		out.Seed = &seed
	}
	if cfg.GenerateAudio {
		enabled := true
		out.GenerateAudio = &enabled
	}
	return out
}
