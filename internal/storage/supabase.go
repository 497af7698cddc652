package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	storage_go "github.com/supabase-community/storage-go"

	"vidforge/internal/fileutil"
	"vidforge/internal/logging"
	"vidforge/internal/services"
)

// SupabaseGateway stores objects in Supabase Storage.
type SupabaseGateway struct {
	client  *storage_go.Client
	baseURL string
	logger  *slog.Logger
}

// NewSupabaseGateway connects to the project at baseURL with a service key.
func NewSupabaseGateway(baseURL, serviceKey string, logger *slog.Logger) (*SupabaseGateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || strings.TrimSpace(serviceKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "supabase storage", "url and service key required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SupabaseGateway{
		client:  storage_go.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		baseURL: baseURL,
		logger:  logging.NewComponentLogger(logger, "storage"),
	}, nil
}

func (g *SupabaseGateway) Upload(ctx context.Context, localPath, bucket, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "", "upload", localPath, err)
	}
	defer file.Close()

	ct := contentType(localPath)
	upsert := true
	if _, err := g.client.UploadFile(bucket, key, file, storage_go.FileOptions{ContentType: &ct, Upsert: &upsert}); err != nil {
		return "", services.Wrap(services.ErrStorage, "", "upload", bucket+"/"+key, err)
	}
	logging.WithContext(ctx, g.logger).Debug("object uploaded", logging.String("bucket", bucket), logging.String("key", key))
	return g.PublicURL(bucket, key), nil
}

func (g *SupabaseGateway) Download(ctx context.Context, bucket, key, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := g.client.DownloadFile(bucket, key)
	if err != nil {
		marker := services.ErrStorage
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			marker = services.ErrNotFound
		}
		return "", services.Wrap(marker, "", "download", bucket+"/"+key, err)
	}
	if err := fileutil.WriteAtomic(localPath, bytes.NewReader(data)); err != nil {
		return "", services.Wrap(services.ErrStorage, "", "download", localPath, err)
	}
	return localPath, nil
}

func (g *SupabaseGateway) FindByExtension(ctx context.Context, bucket, prefix, ext string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	ext = normalizeExt(ext)
	folder := strings.TrimSuffix(prefix, "/")
	files, err := g.client.ListFiles(bucket, folder, storage_go.FileSearchOptions{Limit: 1000})
	if err != nil {
		return "", false, services.Wrap(services.ErrStorage, "", "find", bucket+"/"+prefix, err)
	}
	// Listing is one level deep and names are relative to folder.
	matches := make([]storage_go.FileObject, 0, len(files))
	for _, f := range files {
		if f.Id == "" || !strings.EqualFold(path.Ext(f.Name), ext) {
			continue
		}
		matches = append(matches, f)
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].UpdatedAt > matches[j].UpdatedAt })
	return path.Join(folder, matches[0].Name), true, nil
}

func (g *SupabaseGateway) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", g.baseURL, bucket, key)
}

func (g *SupabaseGateway) Ping(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := g.client.GetBucket(bucket); err != nil {
		return services.Wrap(services.ErrStorage, "", "ping", bucket, err)
	}
	return nil
}
