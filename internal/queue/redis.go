package queue

import (
    "context"
    "fmt"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisQueue is the submission queue: a Redis Stream with a consumer group,
// plus a set of cancelled job ids so a cancellation issued before a job is
// picked up still takes effect at dequeue time.
type RedisQueue struct {
    client    *redis.Client
    Stream    string
    Group     string
    CancelKey string
}

// NewRedisQueue connects to Redis and ensures the stream and consumer group
// exist.
func NewRedisQueue(redisURL, stream, group string) (*RedisQueue, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("parse redis url: %w", err)
    }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    q := &RedisQueue{
        client:    c,
        Stream:    stream,
        Group:     group,
        CancelKey: "jobs:cancelled:set",
    }
    // MKSTREAM creates the stream if missing.
    if err := c.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroupErr(err) {
        return nil, fmt.Errorf("xgroup create: %w", err)
    }
    return q, nil
}

// Redis reports an existing group as a plain "BUSYGROUP ..." error string;
// go-redis exposes no sentinel for it.
func isBusyGroupErr(err error) bool {
    if err == nil {
        return false
    }
    return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error { return q.client.Close() }

// Ping checks redis connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue adds a submission to the stream as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
    return q.client.XAdd(ctx, &redis.XAddArgs{
        Stream: q.Stream,
        Values: map[string]any{"data": string(payload)},
    }).Err()
}

// Dequeue reads one submission for the consumer, blocking up to timeout.
// A nil payload with nil error means the block elapsed without messages.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error) {
    res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
        Group:    q.Group,
        Consumer: consumer,
        Streams:  []string{q.Stream, ">"},
        Count:    1,
        Block:    timeout,
    }).Result()
    if err != nil {
        if err == redis.Nil {
            return "", nil, nil
        }
        return "", nil, err
    }
    if len(res) == 0 || len(res[0].Messages) == 0 {
        return "", nil, nil
    }
    msg := res[0].Messages[0]
    if v, ok := msg.Values["data"]; ok {
        switch t := v.(type) {
        case string:
            return msg.ID, []byte(t), nil
        case []byte:
            return msg.ID, t, nil
        }
    }
    return msg.ID, nil, nil
}

// Ack marks a message as processed.
func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
    if msgID == "" {
        return nil
    }
    return q.client.XAck(ctx, q.Stream, q.Group, msgID).Err()
}

// CancelJob records the job id as cancelled. Runners check this before
// starting a dequeued job.
func (q *RedisQueue) CancelJob(ctx context.Context, jobID string) error {
    return q.client.SAdd(ctx, q.CancelKey, jobID).Err()
}

// IsCancelled returns true if the job id has been cancelled.
func (q *RedisQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
    return q.client.SIsMember(ctx, q.CancelKey, jobID).Result()
}

// Depth returns the approximate stream length for metrics.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
    return q.client.XLen(ctx, q.Stream).Result()
}
