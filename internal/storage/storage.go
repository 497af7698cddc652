package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"vidforge/internal/config"
)

// Gateway uploads, downloads and searches stored objects.
type Gateway interface {
	// Upload stores localPath at bucket/key, replacing any existing object,
	// and returns its public URL.
	Upload(ctx context.Context, localPath, bucket, key string) (string, error)
	// Download writes bucket/key to localPath and returns localPath.
	Download(ctx context.Context, bucket, key, localPath string) (string, error)
	// FindByExtension returns the most recently updated key under prefix
	// ending in ext.
	FindByExtension(ctx context.Context, bucket, prefix, ext string) (string, bool, error)
	PublicURL(bucket, key string) string
	Ping(ctx context.Context, bucket string) error
}

// New builds the configured gateway.
func New(cfg config.Storage, logger *slog.Logger) (Gateway, error) {
	switch cfg.Backend {
	case "supabase":
		return NewSupabaseGateway(cfg.SupabaseURL, cfg.SupabaseKey, logger)
	case "local", "":
		return NewLocalGateway(cfg.LocalDir, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	}
	return "application/octet-stream"
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
