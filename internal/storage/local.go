package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidforge/internal/fileutil"
	"vidforge/internal/services"
)

// LocalGateway stores objects as files under root/bucket/key.
type LocalGateway struct {
	root          string
	publicBaseURL string
}

// NewLocalGateway returns a gateway rooted at dir. publicBaseURL, when set,
// prefixes returned URLs; otherwise file:// URLs are returned.
func NewLocalGateway(dir, publicBaseURL string) *LocalGateway {
	return &LocalGateway{root: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (g *LocalGateway) objectPath(bucket, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", services.Wrap(services.ErrValidation, "", "storage key", fmt.Sprintf("invalid key %q", key), nil)
	}
	return filepath.Join(g.root, bucket, clean), nil
}

func (g *LocalGateway) Upload(ctx context.Context, localPath, bucket, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := g.objectPath(bucket, key)
	if err != nil {
		return "", err
	}
	if err := fileutil.CopyFileVerified(localPath, dst); err != nil {
		return "", services.Wrap(services.ErrStorage, "", "upload", bucket+"/"+key, err)
	}
	return g.PublicURL(bucket, key), nil
}

func (g *LocalGateway) Download(ctx context.Context, bucket, key, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := g.objectPath(bucket, key)
	if err != nil {
		return "", err
	}
	if err := fileutil.CopyFile(src, localPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "", "download", bucket+"/"+key, err)
		}
		return "", services.Wrap(services.ErrStorage, "", "download", bucket+"/"+key, err)
	}
	return localPath, nil
}

func (g *LocalGateway) FindByExtension(ctx context.Context, bucket, prefix, ext string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	ext = normalizeExt(ext)
	base := filepath.Join(g.root, bucket)
	dir := filepath.Join(base, filepath.FromSlash(prefix))
	var (
		bestKey  string
		bestTime time.Time
	)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ext) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		if bestKey == "" || info.ModTime().After(bestTime) {
			bestKey, bestTime = filepath.ToSlash(rel), info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", false, services.Wrap(services.ErrStorage, "", "find", prefix, err)
	}
	return bestKey, bestKey != "", nil
}

func (g *LocalGateway) PublicURL(bucket, key string) string {
	if g.publicBaseURL != "" {
		return g.publicBaseURL + "/" + bucket + "/" + key
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(g.root, bucket, key))}).String()
}

// Ping creates the bucket directory if needed and checks it is writable.
func (g *LocalGateway) Ping(ctx context.Context, bucket string) error {
	dir := filepath.Join(g.root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "", "ping", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".ping-*")
	if err != nil {
		return services.Wrap(services.ErrStorage, "", "ping", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
