package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vidforge/internal/config"
	"vidforge/internal/fileutil"
	"vidforge/internal/logging"
	"vidforge/internal/services"
)

const (
	klingTextToVideoPath = "/v1/videos/text2video"
	klingTokenTTL        = 30 * time.Minute
	klingRequestTimeout  = 60 * time.Second
)

// KlingGenerator drives the Kling text-to-video task API.
type KlingGenerator struct {
	baseURL      string
	accessKey    string
	secretKey    string
	httpClient   *http.Client
	downloads    *http.Client
	pollInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// KlingOption customizes the generator.
type KlingOption func(*KlingGenerator)

// WithHTTPClient overrides the client used for task API calls.
func WithHTTPClient(client *http.Client) KlingOption {
	return func(g *KlingGenerator) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithDownloadClient overrides the client used to fetch finished clips.
func WithDownloadClient(client *http.Client) KlingOption {
	return func(g *KlingGenerator) {
		if client != nil {
			g.downloads = client
		}
	}
}

// WithPollInterval overrides the task polling interval.
func WithPollInterval(d time.Duration) KlingOption {
	return func(g *KlingGenerator) { g.pollInterval = d }
}

// NewKlingGenerator builds a generator from cfg.
func NewKlingGenerator(cfg config.Kling, logger *slog.Logger, opts ...KlingOption) (*KlingGenerator, error) {
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "kling client", "access key and secret key required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &KlingGenerator{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		accessKey:    strings.TrimSpace(cfg.AccessKey),
		secretKey:    strings.TrimSpace(cfg.SecretKey),
		httpClient:   &http.Client{Timeout: klingRequestTimeout},
		downloads:    newDownloadClient(),
		pollInterval: time.Duration(cfg.PollSeconds) * time.Second,
		now:          time.Now,
		logger:       logging.NewComponentLogger(logger, "kling"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pollInterval < 0 {
		g.pollInterval = 0
	}
	return g, nil
}

type klingCreateRequest struct {
	ModelName      string  `json:"model_name"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	CFGScale       float64 `json:"cfg_scale"`
	Mode           string  `json:"mode"`
	AspectRatio    string  `json:"aspect_ratio"`
	Duration       string  `json:"duration"`
}

type klingEnvelope struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Data      klingTask `json:"data"`
}

type klingTask struct {
	TaskID        string `json:"task_id"`
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	TaskResult    struct {
		Videos []struct {
			ID       string `json:"id"`
			URL      string `json:"url"`
			Duration string `json:"duration"`
		} `json:"videos"`
	} `json:"task_result"`
}

type klingStatusError struct {
	StatusCode int
	Body       string
}

func (e *klingStatusError) Error() string {
	return fmt.Sprintf("kling request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Generate creates a Kling task, polls it to completion and downloads the clip.
func (g *KlingGenerator) Generate(ctx context.Context, req GenerateRequest) (Clip, error) {
	cfg, ok := req.Config.(KlingConfig)
	if !ok {
		return Clip{}, services.Wrap(services.ErrConfiguration, "", "kling generate", fmt.Sprintf("unexpected config type %T", req.Config), nil)
	}
	duration := cfg.DurationSeconds
	if duration == 0 {
		duration = 5
	}
	body := klingCreateRequest{
		ModelName:      cfg.Model,
		Prompt:         req.Prompt,
		NegativePrompt: cfg.NegativePrompt,
		CFGScale:       cfg.CFGScale,
		Mode:           cfg.Mode,
		AspectRatio:    cfg.AspectRatio,
		Duration:       strconv.Itoa(duration),
	}
	created, err := g.call(ctx, http.MethodPost, klingTextToVideoPath, body)
	if err != nil {
		return Clip{}, services.Wrap(services.ErrProvider, "", "kling generate", "create task", err)
	}
	taskID := created.TaskID
	if taskID == "" {
		return Clip{}, services.Wrap(services.ErrProvider, "", "kling generate", "create task returned no task id", nil)
	}
	logger := logging.WithContext(ctx, g.logger)
	logger.Debug("kling task submitted", logging.String("task", taskID), logging.String("model", cfg.Model))

	task := created
	for task.TaskStatus != "succeed" {
		if task.TaskStatus == "failed" {
			return Clip{}, services.Wrap(services.ErrProvider, "", "kling generate", fmt.Sprintf("task %s failed: %s", taskID, task.TaskStatusMsg), nil)
		}
		if err := sleepCtx(ctx, g.pollInterval); err != nil {
			return Clip{}, services.Wrap(services.ErrProvider, "", "kling generate", "wait for task "+taskID, err)
		}
		task, err = g.call(ctx, http.MethodGet, klingTextToVideoPath+"/"+taskID, nil)
		if err != nil {
			return Clip{}, services.Wrap(services.ErrProvider, "", "kling generate", "poll task", err)
		}
	}
	if len(task.TaskResult.Videos) == 0 || task.TaskResult.Videos[0].URL == "" {
		return Clip{}, services.Wrap(services.ErrProvider, "", "kling generate", fmt.Sprintf("task %s returned no video", taskID), nil)
	}
	video := task.TaskResult.Videos[0]
	if err := g.download(ctx, video.URL, req.OutputPath); err != nil {
		return Clip{}, services.Wrap(services.ErrProvider, "", "kling generate", "download video", err)
	}
	seconds, _ := strconv.ParseFloat(video.Duration, 64)
	logger.Debug("kling clip written", logging.String("clip_path", req.OutputPath), logging.Float64("reported_seconds", seconds))
	return Clip{Path: req.OutputPath, DurationSeconds: seconds, ProviderJobID: taskID}, nil
}

// token signs the short-lived bearer token Kling expects.
func (g *KlingGenerator) token() (string, error) {
	now := g.now()
	claims := jwt.MapClaims{
		"iss": g.accessKey,
		"exp": now.Add(klingTokenTTL).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.secretKey))
}

func (g *KlingGenerator) call(ctx context.Context, method, path string, payload any) (klingTask, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return klingTask{}, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return klingTask{}, fmt.Errorf("build request: %w", err)
	}
	token, err := g.token()
	if err != nil {
		return klingTask{}, fmt.Errorf("sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return klingTask{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return klingTask{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return klingTask{}, &klingStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var env klingEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return klingTask{}, fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 {
		return klingTask{}, fmt.Errorf("kling error %d: %s (request %s)", env.Code, env.Message, env.RequestID)
	}
	return env.Data, nil
}

// newDownloadClient bounds the wait for response headers only. The body
// transfer runs until ctx is done, since clip files can take longer than
// an API round trip.
func newDownloadClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = klingRequestTimeout
	return &http.Client{Transport: transport}
}

func (g *KlingGenerator) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.downloads.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &klingStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return fileutil.WriteAtomic(path, resp.Body)
}
