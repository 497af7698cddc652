package project

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidforge/internal/database"
	"vidforge/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// Store persists videos, jobs and history in the shared database.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore applies the project schema and returns a store.
func NewStore(ctx context.Context, db *database.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("project store: database is nil")
	}
	if err := db.Migrate(ctx, "project", schemaVersion, schemaSQL); err != nil {
		return nil, err
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const videoColumns = "id, user_id, visibility, version, status, storyboard_json, current_job_id, result_json, created_at, updated_at"

const jobColumns = "id, video_id, user_id, type, status, stage, failed_stage, error_message, params_json, progress_json, attempts, result_json, created_at, updated_at, started_at, finished_at"

// CreateVideo inserts a new draft video. ID and timestamps are filled when empty.
func (s *Store) CreateVideo(ctx context.Context, video *Video) (*Video, error) {
	if video == nil {
		return nil, errors.New("video is nil")
	}
	if strings.TrimSpace(video.UserID) == "" {
		return nil, services.Wrap(services.ErrValidation, "", "create video", "user id is required", nil)
	}
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	if video.Visibility == "" {
		video.Visibility = VisibilityPrivate
	}
	if video.Storyboard != nil {
		if err := ValidateScenes(video.Storyboard.Scenes); err != nil {
			return nil, services.Wrap(services.ErrValidation, "", "create video", "invalid storyboard", err)
		}
	}
	storyboard, err := marshalOptional(video.Storyboard)
	if err != nil {
		return nil, err
	}
	now := s.now()
	video.Version = 1
	video.Status = VideoDraft
	video.CreatedAt, video.UpdatedAt = now, now
	_, err = s.db.Exec(ctx,
		`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.UserID, string(video.Visibility), video.Version, string(video.Status),
		storyboard, nil, nil, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	return video, nil
}

// GetVideo fetches a video by id. It returns nil, nil when the video does not exist.
func (s *Store) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// MustGetVideo is GetVideo but reports a missing video as ErrNotFound.
func (s *Store) MustGetVideo(ctx context.Context, id string) (*Video, error) {
	video, err := s.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "get video", fmt.Sprintf("video %s", id), nil)
	}
	return video, nil
}

// ListVideos returns the user's videos, newest first. An empty userID lists all.
func (s *Store) ListVideos(ctx context.Context, userID string, limit int) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()
	var out []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		out = append(out, video)
	}
	return out, rows.Err()
}

// SaveStoryboard replaces the video's storyboard and bumps its version.
// The returned value is the new version.
func (s *Store) SaveStoryboard(ctx context.Context, videoID string, board Storyboard) (int64, error) {
	if err := ValidateScenes(board.Scenes); err != nil {
		return 0, services.Wrap(services.ErrValidation, "", "save storyboard", "invalid storyboard", err)
	}
	payload, err := json.Marshal(board)
	if err != nil {
		return 0, fmt.Errorf("marshal storyboard: %w", err)
	}
	var version int64
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		res, err := tx.Exec(ctx,
			`UPDATE videos SET storyboard_json = ?, version = version + 1, updated_at = ? WHERE id = ?`,
			string(payload), formatTime(s.now()), videoID,
		)
		if err != nil {
			return fmt.Errorf("update storyboard: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrNotFound, "", "save storyboard", fmt.Sprintf("video %s", videoID), nil)
		}
		return tx.QueryRow(ctx, `SELECT version FROM videos WHERE id = ?`, videoID).Scan(&version)
	})
	return version, err
}

// BumpVersion increments the video version and returns the new value.
func (s *Store) BumpVersion(ctx context.Context, videoID string) (int64, error) {
	var version int64
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		res, err := tx.Exec(ctx, `UPDATE videos SET version = version + 1, updated_at = ? WHERE id = ?`, formatTime(s.now()), videoID)
		if err != nil {
			return fmt.Errorf("bump version: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrNotFound, "", "bump version", fmt.Sprintf("video %s", videoID), nil)
		}
		return tx.QueryRow(ctx, `SELECT version FROM videos WHERE id = ?`, videoID).Scan(&version)
	})
	return version, err
}

// SetVideoStatus records the video status. result is stored only when non-nil,
// so a failure never clears a previous successful result.
func (s *Store) SetVideoStatus(ctx context.Context, videoID string, status VideoStatus, result *Result) error {
	now := formatTime(s.now())
	var (
		res sql.Result
		err error
	)
	if result != nil {
		payload, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			return fmt.Errorf("marshal result: %w", marshalErr)
		}
		res, err = s.db.Exec(ctx, `UPDATE videos SET status = ?, result_json = ?, updated_at = ? WHERE id = ?`, string(status), string(payload), now, videoID)
	} else {
		res, err = s.db.Exec(ctx, `UPDATE videos SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, videoID)
	}
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "", "update video status", fmt.Sprintf("video %s", videoID), nil)
	}
	return nil
}

// SetVisibility changes who can see the video.
func (s *Store) SetVisibility(ctx context.Context, videoID string, visibility Visibility) error {
	switch visibility {
	case VisibilityPrivate, VisibilityUnlisted, VisibilityPublic:
	default:
		return services.Wrap(services.ErrValidation, "", "set visibility", fmt.Sprintf("unknown visibility %q", visibility), nil)
	}
	res, err := s.db.Exec(ctx, `UPDATE videos SET visibility = ?, updated_at = ? WHERE id = ?`, string(visibility), formatTime(s.now()), videoID)
	if err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "", "set visibility", fmt.Sprintf("video %s", videoID), nil)
	}
	return nil
}
