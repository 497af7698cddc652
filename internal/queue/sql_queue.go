package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vidforge/internal/database"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const (
	msgReady  = "ready"
	msgLeased = "leased"
	msgDone   = "done"
	msgDead   = "dead"
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLQueue stores messages in the queue_messages table.
type SQLQueue struct {
	db   *database.DB
	name string
	now  func() time.Time
}

// NewSQLQueue applies the queue schema and returns a queue bound to name.
func NewSQLQueue(ctx context.Context, db *database.DB, name string) (*SQLQueue, error) {
	if db == nil {
		return nil, errors.New("sql queue: database is nil")
	}
	if name == "" {
		name = DefaultName
	}
	if err := db.Migrate(ctx, "queue", schemaVersion, schemaSQL); err != nil {
		return nil, err
	}
	return &SQLQueue{db: db, name: name, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (q *SQLQueue) Enqueue(ctx context.Context, payload Payload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id := uuid.NewString()
	now := q.stamp(q.now())
	_, err = q.db.Exec(ctx,
		`INSERT INTO queue_messages (id, queue, payload_json, status, attempts, available_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		id, q.name, string(body), msgReady, now, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

func (q *SQLQueue) Dequeue(ctx context.Context, lease time.Duration) (*Delivery, error) {
	now := q.now()
	nowStamp := q.stamp(now)
	var delivery *Delivery
	err := q.db.WithTx(ctx, func(tx *database.Tx) error {
		delivery = nil
		var (
			id, body, created string
			attempts          int
			lastError         sql.NullString
		)
		err := tx.QueryRow(ctx,
			`SELECT id, payload_json, attempts, last_error, created_at FROM queue_messages
             WHERE queue = ? AND ((status = ? AND available_at <= ?) OR (status = ? AND lease_expires_at <= ?))
             ORDER BY available_at, created_at LIMIT 1`,
			q.name, msgReady, nowStamp, msgLeased, nowStamp,
		).Scan(&id, &body, &attempts, &lastError, &created)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select ready message: %w", err)
		}

		token := uuid.NewString()
		res, err := tx.Exec(ctx,
			`UPDATE queue_messages SET status = ?, attempts = attempts + 1, lease_token = ?, lease_expires_at = ?, updated_at = ?
             WHERE id = ? AND ((status = ? AND available_at <= ?) OR (status = ? AND lease_expires_at <= ?))`,
			msgLeased, token, q.stamp(now.Add(lease)), nowStamp,
			id, msgReady, nowStamp, msgLeased, nowStamp,
		)
		if err != nil {
			return fmt.Errorf("lease message: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		var payload Payload
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return fmt.Errorf("decode payload %s: %w", id, err)
		}
		enqueued, _ := time.Parse(time.RFC3339Nano, created)
		delivery = &Delivery{
			ID:         id,
			Token:      token,
			Payload:    payload,
			Attempt:    attempts + 1,
			EnqueuedAt: enqueued,
			LastError:  lastError.String,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

func (q *SQLQueue) Extend(ctx context.Context, d *Delivery, lease time.Duration) error {
	now := q.now()
	return q.owned(q.db.Exec(ctx,
		`UPDATE queue_messages SET lease_expires_at = ?, updated_at = ? WHERE id = ? AND status = ? AND lease_token = ?`,
		q.stamp(now.Add(lease)), q.stamp(now), d.ID, msgLeased, d.Token,
	))
}

func (q *SQLQueue) Ack(ctx context.Context, d *Delivery, retain bool) error {
	if retain {
		return q.owned(q.db.Exec(ctx,
			`UPDATE queue_messages SET status = ?, lease_token = NULL, lease_expires_at = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND lease_token = ?`,
			msgDone, q.stamp(q.now()), d.ID, msgLeased, d.Token,
		))
	}
	return q.owned(q.db.Exec(ctx,
		`DELETE FROM queue_messages WHERE id = ? AND status = ? AND lease_token = ?`,
		d.ID, msgLeased, d.Token,
	))
}

func (q *SQLQueue) Retry(ctx context.Context, d *Delivery, delay time.Duration, reason string) error {
	now := q.now()
	return q.owned(q.db.Exec(ctx,
		`UPDATE queue_messages SET status = ?, lease_token = NULL, lease_expires_at = NULL, available_at = ?, last_error = ?, updated_at = ?
         WHERE id = ? AND status = ? AND lease_token = ?`,
		msgReady, q.stamp(now.Add(delay)), reason, q.stamp(now), d.ID, msgLeased, d.Token,
	))
}

func (q *SQLQueue) DeadLetter(ctx context.Context, d *Delivery, retain bool, reason string) error {
	if retain {
		return q.owned(q.db.Exec(ctx,
			`UPDATE queue_messages SET status = ?, lease_token = NULL, lease_expires_at = NULL, last_error = ?, updated_at = ?
             WHERE id = ? AND status = ? AND lease_token = ?`,
			msgDead, reason, q.stamp(q.now()), d.ID, msgLeased, d.Token,
		))
	}
	return q.owned(q.db.Exec(ctx,
		`DELETE FROM queue_messages WHERE id = ? AND status = ? AND lease_token = ?`,
		d.ID, msgLeased, d.Token,
	))
}

func (q *SQLQueue) Stats(ctx context.Context) (Stats, error) {
	nowStamp := q.stamp(q.now())
	rows, err := q.db.Query(ctx,
		`SELECT status, CASE WHEN status = ? AND available_at > ? THEN 1 ELSE 0 END AS delayed, COUNT(*)
         FROM queue_messages WHERE queue = ? GROUP BY status, delayed`,
		msgReady, nowStamp, q.name,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()
	var stats Stats
	for rows.Next() {
		var (
			status  string
			delayed int
			count   int
		)
		if err := rows.Scan(&status, &delayed, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		switch {
		case status == msgReady && delayed == 1:
			stats.Delayed += count
		case status == msgReady:
			stats.Ready += count
		case status == msgLeased:
			stats.Leased += count
		case status == msgDone:
			stats.Done += count
		case status == msgDead:
			stats.Dead += count
		}
	}
	return stats, rows.Err()
}

// Close is a no-op; the database handle is owned by the caller.
func (q *SQLQueue) Close() error { return nil }

func (q *SQLQueue) owned(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (q *SQLQueue) stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
