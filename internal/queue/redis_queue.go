package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisQueue keeps message bodies in hashes and ids in a ready list, a
// delayed sorted set (score = available time) and a leased sorted set
// (score = lease expiry).
type RedisQueue struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisQueue returns a queue whose keys live under prefix:name.
func NewRedisQueue(client *redis.Client, prefix, name string) *RedisQueue {
	if name == "" {
		name = DefaultName
	}
	if prefix != "" {
		prefix += ":"
	}
	return &RedisQueue{client: client, prefix: prefix + name, now: time.Now}
}

func (q *RedisQueue) key(part string) string { return q.prefix + ":" + part }

func (q *RedisQueue) msgKey(id string) string { return q.prefix + ":msg:" + id }

func millis(t time.Time) float64 { return float64(t.UnixMilli()) }

func (q *RedisQueue) Enqueue(ctx context.Context, payload Payload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id := uuid.NewString()
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.msgKey(id), map[string]any{
			"payload":     string(body),
			"attempts":    0,
			"enqueued_at": q.now().UTC().Format(time.RFC3339Nano),
		})
		pipe.LPush(ctx, q.key("ready"), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

// promoteScript moves every id due by ARGV[1] from the sorted set KEYS[1]
// onto the ready list KEYS[2].
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(due) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('LPUSH', KEYS[2], id)
end
return #due
`)

// leaseScript pops the next ready id and leases it in one step, so an id is
// always in ready, leased or neither because it was acked. Returns false on
// an empty list and attempts -1 when the body was purged while queued.
//
// KEYS[1] ready, KEYS[2] leased; ARGV[1] lease expiry, ARGV[2] token,
// ARGV[3] message key prefix.
var leaseScript = redis.NewScript(`
local id = redis.call('RPOP', KEYS[1])
if not id then
	return false
end
local msg = ARGV[3] .. id
if redis.call('EXISTS', msg) == 0 then
	return {id, -1}
end
local attempts = redis.call('HINCRBY', msg, 'attempts', 1)
redis.call('HSET', msg, 'token', ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[1], id)
return {id, attempts}
`)

func (q *RedisQueue) promote(ctx context.Context, set string) error {
	err := promoteScript.Run(ctx, q.client,
		[]string{q.key(set), q.key("ready")},
		q.now().UnixMilli(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("promote %s: %w", set, err)
	}
	return nil
}

// Dequeue leases the next ready message. A failure after the lease leaves
// the message in the leased set, where it is reclaimed once the lease
// expires.
func (q *RedisQueue) Dequeue(ctx context.Context, lease time.Duration) (*Delivery, error) {
	if err := q.promote(ctx, "delayed"); err != nil {
		return nil, err
	}
	if err := q.promote(ctx, "leased"); err != nil {
		return nil, err
	}
	token := uuid.NewString()
	res, err := leaseScript.Run(ctx, q.client,
		[]string{q.key("ready"), q.key("leased")},
		q.now().Add(lease).UnixMilli(), token, q.prefix+":msg:",
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lease ready message: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("lease ready message: unexpected reply %v", res)
	}
	id, _ := res[0].(string)
	attempts, _ := res[1].(int64)
	if attempts < 0 {
		// Purged while queued; nothing to deliver.
		return nil, nil
	}

	fields, err := q.client.HGetAll(ctx, q.msgKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", id, err)
	}
	var payload Payload
	if err := json.Unmarshal([]byte(fields["payload"]), &payload); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", id, err)
	}
	enqueued, _ := time.Parse(time.RFC3339Nano, fields["enqueued_at"])
	return &Delivery{
		ID:         id,
		Token:      token,
		Payload:    payload,
		Attempt:    int(attempts),
		EnqueuedAt: enqueued,
		LastError:  fields["last_error"],
	}, nil
}

func (q *RedisQueue) checkToken(ctx context.Context, d *Delivery) error {
	token, err := q.client.HGet(ctx, q.msgKey(d.ID), "token").Result()
	if errors.Is(err, redis.Nil) {
		return ErrLeaseLost
	}
	if err != nil {
		return fmt.Errorf("load lease token: %w", err)
	}
	if token != d.Token {
		return ErrLeaseLost
	}
	return nil
}

// release removes d from the leased set, failing if another worker reclaimed it.
func (q *RedisQueue) release(ctx context.Context, d *Delivery) error {
	if err := q.checkToken(ctx, d); err != nil {
		return err
	}
	removed, err := q.client.ZRem(ctx, q.key("leased"), d.ID).Result()
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	if removed == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (q *RedisQueue) Extend(ctx context.Context, d *Delivery, lease time.Duration) error {
	if err := q.checkToken(ctx, d); err != nil {
		return err
	}
	if _, err := q.client.ZScore(ctx, q.key("leased"), d.ID).Result(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrLeaseLost
		}
		return fmt.Errorf("check lease: %w", err)
	}
	return q.client.ZAdd(ctx, q.key("leased"), &redis.Z{Score: millis(q.now().Add(lease)), Member: d.ID}).Err()
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery, retain bool) error {
	if err := q.release(ctx, d); err != nil {
		return err
	}
	return q.finish(ctx, d, "done", retain, "")
}

func (q *RedisQueue) Retry(ctx context.Context, d *Delivery, delay time.Duration, reason string) error {
	if err := q.release(ctx, d); err != nil {
		return err
	}
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.msgKey(d.ID), "last_error", reason, "token", "")
		pipe.ZAdd(ctx, q.key("delayed"), &redis.Z{Score: millis(q.now().Add(delay)), Member: d.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, d *Delivery, retain bool, reason string) error {
	if err := q.release(ctx, d); err != nil {
		return err
	}
	return q.finish(ctx, d, "dead", retain, reason)
}

func (q *RedisQueue) finish(ctx context.Context, d *Delivery, list string, retain bool, reason string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if !retain {
			pipe.Del(ctx, q.msgKey(d.ID))
			return nil
		}
		fields := []any{"token", "", "status", list}
		if reason != "" {
			fields = append(fields, "last_error", reason)
		}
		pipe.HSet(ctx, q.msgKey(d.ID), fields...)
		pipe.LPush(ctx, q.key(list), d.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish message %s: %w", d.ID, err)
	}
	return nil
}

func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var (
		ready, done, dead *redis.IntCmd
		delayed, leased   *redis.IntCmd
	)
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		ready = pipe.LLen(ctx, q.key("ready"))
		delayed = pipe.ZCard(ctx, q.key("delayed"))
		leased = pipe.ZCard(ctx, q.key("leased"))
		done = pipe.LLen(ctx, q.key("done"))
		dead = pipe.LLen(ctx, q.key("dead"))
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{
		Ready:   int(ready.Val()),
		Delayed: int(delayed.Val()),
		Leased:  int(leased.Val()),
		Done:    int(done.Val()),
		Dead:    int(dead.Val()),
	}, nil
}

func (q *RedisQueue) Close() error { return q.client.Close() }
