package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"vidforge/internal/database"
	"vidforge/internal/services"
)

// CreateJob inserts a QUEUED job and claims the video's active slot in the
// same transaction. It fails with ErrActiveJob when the video already has a
// queued or processing job.
func (s *Store) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	if !job.Type.Valid() {
		return nil, services.Wrap(services.ErrValidation, "", "create job", fmt.Sprintf("unknown job type %q", job.Type), nil)
	}
	if job.Type == JobUpdateScene && job.Params.SceneNumber <= 0 {
		return nil, services.Wrap(services.ErrValidation, "", "create job", "sceneNumber is required for UPDATE_SCENE", nil)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	job.Status = JobQueued
	job.Stage = StageQueued
	if job.Progress.TotalSteps == 0 {
		job.Progress = NewProgress(len(PipelineStages))
	}
	job.CreatedAt, job.UpdatedAt = now, now

	params, err := json.Marshal(job.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	progress, err := json.Marshal(job.Progress)
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		var owner string
		if err := tx.QueryRow(ctx, `SELECT user_id FROM videos WHERE id = ?`, job.VideoID).Scan(&owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "", "create job", fmt.Sprintf("video %s", job.VideoID), nil)
			}
			return fmt.Errorf("load video: %w", err)
		}
		if job.UserID == "" {
			job.UserID = owner
		}
		res, err := tx.Exec(ctx,
			`UPDATE videos SET current_job_id = ?, status = ?, updated_at = ?
             WHERE id = ? AND NOT EXISTS (
                 SELECT 1 FROM jobs WHERE jobs.video_id = videos.id AND jobs.status IN (?, ?)
             )`,
			job.ID, string(VideoProcessing), formatTime(now), job.VideoID, string(JobQueued), string(JobProcessing),
		)
		if err != nil {
			return fmt.Errorf("claim video: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrConflict, "", "create job", fmt.Sprintf("video %s", job.VideoID), ErrActiveJob)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.VideoID, job.UserID, string(job.Type), string(job.Status), string(job.Stage),
			nil, nil, string(params), string(progress), 0, nil,
			formatTime(now), formatTime(now), nil, nil,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob fetches a job by id. It returns nil, nil when the job does not exist.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	VideoID  string
	UserID   string
	Statuses []JobStatus
	Limit    int
}

// ListJobs returns jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.VideoID != "" {
		clauses = append(clauses, "video_id = ?")
		args = append(args, filter.VideoID)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+database.Placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpdateJob persists job state. The stored status is compared and swapped so
// concurrent writers cannot move a job backwards or out of a terminal state.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	progress, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	result, err := marshalOptional(job.Result)
	if err != nil {
		return err
	}
	now := s.now()
	if job.Status.Terminal() && job.FinishedAt.IsZero() {
		job.FinishedAt = now
	}
	job.UpdatedAt = now

	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = ?`, job.ID).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "", "update job", fmt.Sprintf("job %s", job.ID), nil)
			}
			return fmt.Errorf("load job status: %w", err)
		}
		if !CanTransition(JobStatus(current), job.Status) {
			return fmt.Errorf("%w: %s -> %s for job %s", ErrInvalidTransition, current, job.Status, job.ID)
		}
		res, err := tx.Exec(ctx,
			`UPDATE jobs SET status = ?, stage = ?, failed_stage = ?, error_message = ?, params_json = ?,
                progress_json = ?, attempts = ?, result_json = ?, updated_at = ?, started_at = ?, finished_at = ?
             WHERE id = ? AND status = ?`,
			string(job.Status), string(job.Stage), nullableString(string(job.FailedStage)), nullableString(job.Error),
			string(params), string(progress), job.Attempts, result, formatTime(now),
			nullableTime(job.StartedAt), nullableTime(job.FinishedAt),
			job.ID, current,
		)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrConflict, "", "update job", fmt.Sprintf("job %s changed concurrently", job.ID), nil)
		}
		return nil
	})
}

// MarkJobFailed moves a job to FAILED and its video to FAILED. It is a no-op
// for jobs that already reached a terminal state.
func (s *Store) MarkJobFailed(ctx context.Context, jobID string, stage Stage, message string) (*Job, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "fail job", fmt.Sprintf("job %s", jobID), nil)
	}
	if job.Status.Terminal() {
		return job, nil
	}
	prev := job.Status
	job.Status = JobFailed
	job.Stage = StageFailed
	if stage != "" && stage != StageFailed {
		job.FailedStage = stage
	}
	if message != "" {
		job.Error = message
	}
	job.Result = nil
	if err := s.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := s.SetVideoStatus(ctx, job.VideoID, VideoFailed, nil); err != nil {
		return nil, err
	}
	if err := s.AppendHistory(ctx, HistoryEntry{
		VideoID: job.VideoID, JobID: job.ID,
		From: string(prev), To: string(JobFailed), Stage: job.FailedStage, Message: job.Error,
	}); err != nil {
		return nil, err
	}
	return job, nil
}

// AppendHistory inserts a history record. History rows are never updated.
func (s *Store) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = s.now()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO video_history (id, video_id, job_id, from_status, to_status, stage, message, at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.VideoID, nullableString(entry.JobID), nullableString(entry.From), nullableString(entry.To),
		nullableString(string(entry.Stage)), nullableString(entry.Message), formatTime(entry.At),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the video's processing history, oldest first.
func (s *Store) History(ctx context.Context, videoID string) ([]HistoryEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, video_id, job_id, from_status, to_status, stage, message, at
         FROM video_history WHERE video_id = ? ORDER BY at, id`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var (
			entry                               HistoryEntry
			jobID, from, to, stage, message, at sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.VideoID, &jobID, &from, &to, &stage, &message, &at); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.JobID, entry.From, entry.To = jobID.String, from.String, to.String
		entry.Stage, entry.Message = Stage(stage.String), message.String
		entry.At = parseTime(at)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// CountJobs returns job counts keyed by status.
func (s *Store) CountJobs(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	out := make(map[JobStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[JobStatus(status)] = count
	}
	return out, rows.Err()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
