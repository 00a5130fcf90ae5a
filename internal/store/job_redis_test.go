package store

import (
    "context"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
)

func newTestStore(t *testing.T) *RedisJobs {
    t.Helper()
    mr := miniredis.RunT(t)
    s, err := NewRedisJobs("redis://" + mr.Addr())
    require.NoError(t, err)
    t.Cleanup(func() { _ = s.Close() })
    return s
}

func TestUpsertGetRoundTrip(t *testing.T) {
    s := newTestStore(t)
    ctx := context.Background()

    job := analysis.New("job-1", analysis.KindSummary)
    job.Status = analysis.StatusSummarizing
    job.Current = 1
    job.Total = 2
    job.Message = "batch 1/2 done"
    job.Batches = []analysis.BatchSummary{
        {Index: 1, Status: analysis.BatchCompleted, Text: "first summary"},
        {Index: 2, Status: analysis.BatchProcessing},
    }

    require.NoError(t, s.Upsert(ctx, job.Snapshot()))

    got, err := s.Get(ctx, "job-1")
    require.NoError(t, err)
    assert.Equal(t, analysis.StatusSummarizing, got.Status)
    assert.Equal(t, 1, got.Current)
    assert.Equal(t, 2, got.Total)
    require.Len(t, got.Batches, 2)
    assert.Equal(t, "first summary", got.Batches[0].Text)
    assert.Equal(t, analysis.BatchProcessing, got.Batches[1].Status)
    assert.WithinDuration(t, job.UpdatedAt, got.UpdatedAt, time.Millisecond)
}

func TestUpsertIsIdempotent(t *testing.T) {
    s := newTestStore(t)
    ctx := context.Background()

    job := analysis.New("job-1", analysis.KindTopics)
    require.NoError(t, s.Upsert(ctx, job.Snapshot()))
    job.Status = analysis.StatusCompleted
    job.FinalSummary = "done"
    require.NoError(t, s.Upsert(ctx, job.Snapshot()))
    require.NoError(t, s.Upsert(ctx, job.Snapshot()))

    got, err := s.Get(ctx, "job-1")
    require.NoError(t, err)
    assert.Equal(t, analysis.StatusCompleted, got.Status)
    assert.Equal(t, "done", got.FinalSummary)
    assert.Equal(t, analysis.KindTopics, got.Kind)
}

func TestGetUnknownJob(t *testing.T) {
    s := newTestStore(t)
    _, err := s.Get(context.Background(), "nope")
    assert.ErrorIs(t, err, analysis.ErrUnknownJob)
}

func TestDelete(t *testing.T) {
    s := newTestStore(t)
    ctx := context.Background()

    job := analysis.New("job-1", analysis.KindSummary)
    require.NoError(t, s.Upsert(ctx, job.Snapshot()))
    require.NoError(t, s.Delete(ctx, "job-1"))
    require.NoError(t, s.Delete(ctx, "job-1"))

    _, err := s.Get(ctx, "job-1")
    assert.ErrorIs(t, err, analysis.ErrUnknownJob)
}
