package project

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		video                         Video
		visibility, status            string
		storyboard, currentJob, resJS sql.NullString
		createdRaw, updatedRaw        sql.NullString
	)
	if err := scanner.Scan(
		&video.ID, &video.UserID, &visibility, &video.Version, &status,
		&storyboard, &currentJob, &resJS, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	video.Visibility = Visibility(visibility)
	video.Status = VideoStatus(status)
	video.CurrentJobID = currentJob.String
	video.CreatedAt = parseTime(createdRaw)
	video.UpdatedAt = parseTime(updatedRaw)
	if storyboard.Valid && storyboard.String != "" {
		var board Storyboard
		if err := json.Unmarshal([]byte(storyboard.String), &board); err != nil {
			return nil, fmt.Errorf("decode storyboard: %w", err)
		}
		video.Storyboard = &board
	}
	if resJS.Valid && resJS.String != "" {
		var result Result
		if err := json.Unmarshal([]byte(resJS.String), &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		video.Result = &result
	}
	return &video, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job                       Job
		jobType, status, stage    string
		failedStage, errorMessage sql.NullString
		params, progress          string
		resJS                     sql.NullString
		createdRaw, updatedRaw    sql.NullString
		startedRaw, finishedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&job.ID, &job.VideoID, &job.UserID, &jobType, &status, &stage,
		&failedStage, &errorMessage, &params, &progress, &job.Attempts, &resJS,
		&createdRaw, &updatedRaw, &startedRaw, &finishedRaw,
	); err != nil {
		return nil, err
	}
	job.Type = JobType(jobType)
	job.Status = JobStatus(status)
	job.Stage = Stage(stage)
	job.FailedStage = Stage(failedStage.String)
	job.Error = errorMessage.String
	if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(progress), &job.Progress); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	if resJS.Valid && resJS.String != "" {
		var result Result
		if err := json.Unmarshal([]byte(resJS.String), &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		job.Result = &result
	}
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	job.StartedAt = parseTime(startedRaw)
	job.FinishedAt = parseTime(finishedRaw)
	return &job, nil
}

func marshalOptional(v any) (any, error) {
	switch typed := v.(type) {
	case *Storyboard:
		if typed == nil {
			return nil, nil
		}
	case *Result:
		if typed == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw.String); err == nil {
		return ts
	}
	return time.Time{}
}
