package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
)

// RedisJobs persists job snapshots in Redis hashes, one hash per job id.
// Writes are idempotent upserts; the orchestrator is the only writer for a
// given job, pollers and the publisher only read.
type RedisJobs struct {
    client *redis.Client
    keyNS  string
}

func NewRedisJobs(redisURL string) (*RedisJobs, error) {
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
    return &RedisJobs{client: c, keyNS: "job"}, nil
}

func (s *RedisJobs) key(jobID string) string { return fmt.Sprintf("%s:%s:snapshot", s.keyNS, jobID) }

// Upsert writes the full snapshot for the job, replacing any previous one.
func (s *RedisJobs) Upsert(ctx context.Context, snap analysis.Job) error {
    batches, err := json.Marshal(snap.Batches)
    if err != nil {
        return fmt.Errorf("marshal batches: %w", err)
    }
    m := map[string]interface{}{
        "kind":          string(snap.Kind),
        "status":        string(snap.Status),
        "current":       snap.Current,
        "total":         snap.Total,
        "message":       snap.Message,
        "batches":       string(batches),
        "final_summary": snap.FinalSummary,
        "error":         snap.Error,
        "created_at":    snap.CreatedAt.Format(time.RFC3339Nano),
        "updated_at":    snap.UpdatedAt.Format(time.RFC3339Nano),
    }
    return s.client.HSet(ctx, s.key(snap.ID), m).Err()
}

// Get returns the stored snapshot, or analysis.ErrUnknownJob if none exists.
func (s *RedisJobs) Get(ctx context.Context, jobID string) (analysis.Job, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil {
        return analysis.Job{}, err
    }
    if len(res) == 0 {
        return analysis.Job{}, analysis.ErrUnknownJob
    }
    snap := analysis.Job{
        ID:           jobID,
        Kind:         analysis.Kind(res["kind"]),
        Status:       analysis.Status(res["status"]),
        Message:      res["message"],
        FinalSummary: res["final_summary"],
        Error:        res["error"],
    }
    snap.Current, _ = strconv.Atoi(res["current"])
    snap.Total, _ = strconv.Atoi(res["total"])
    if v := res["batches"]; v != "" {
        _ = json.Unmarshal([]byte(v), &snap.Batches)
    }
    if t, err := time.Parse(time.RFC3339Nano, res["created_at"]); err == nil {
        snap.CreatedAt = t
    }
    if t, err := time.Parse(time.RFC3339Nano, res["updated_at"]); err == nil {
        snap.UpdatedAt = t
    }
    return snap, nil
}

// Delete removes the job's snapshot. Missing keys are not an error.
func (s *RedisJobs) Delete(ctx context.Context, jobID string) error {
    return s.client.Del(ctx, s.key(jobID)).Err()
}

func (s *RedisJobs) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisJobs) Close() error { return s.client.Close() }
