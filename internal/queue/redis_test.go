package queue

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *RedisQueue {
    t.Helper()
    mr := miniredis.RunT(t)
    q, err := NewRedisQueue("redis://"+mr.Addr(), "jobs:test", "workers:test")
    require.NoError(t, err)
    t.Cleanup(func() { q.Close() })
    return q
}

func TestNewRedisQueueExistingGroup(t *testing.T) {
    mr := miniredis.RunT(t)

    q1, err := NewRedisQueue("redis://"+mr.Addr(), "jobs:test", "workers:test")
    require.NoError(t, err)
    defer q1.Close()

    // A second connect hits the BUSYGROUP reply and must not fail.
    q2, err := NewRedisQueue("redis://"+mr.Addr(), "jobs:test", "workers:test")
    require.NoError(t, err)
    defer q2.Close()
}

func TestIsBusyGroupErr(t *testing.T) {
    assert.False(t, isBusyGroupErr(nil))
    assert.False(t, isBusyGroupErr(errors.New("connection refused")))
    assert.True(t, isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")))
}

func TestEnqueueDequeueAck(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    require.NoError(t, q.Enqueue(ctx, []byte(`{"job_id":"j1"}`)))

    id, payload, err := q.Dequeue(ctx, "c1", 100*time.Millisecond)
    require.NoError(t, err)
    require.NotEmpty(t, id)
    assert.Equal(t, `{"job_id":"j1"}`, string(payload))

    require.NoError(t, q.Ack(ctx, id))
}

func TestDequeueEmpty(t *testing.T) {
    q := newTestQueue(t)

    id, payload, err := q.Dequeue(context.Background(), "c1", 10*time.Millisecond)
    require.NoError(t, err)
    assert.Empty(t, id)
    assert.Nil(t, payload)
}

func TestCancelledSet(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    cancelled, err := q.IsCancelled(ctx, "j1")
    require.NoError(t, err)
    assert.False(t, cancelled)

    require.NoError(t, q.CancelJob(ctx, "j1"))

    cancelled, err = q.IsCancelled(ctx, "j1")
    require.NoError(t, err)
    assert.True(t, cancelled)
}

func TestDepth(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    n, err := q.Depth(ctx)
    require.NoError(t, err)
    assert.Equal(t, int64(0), n)

    require.NoError(t, q.Enqueue(ctx, []byte(`a`)))
    require.NoError(t, q.Enqueue(ctx, []byte(`b`)))

    n, err = q.Depth(ctx)
    require.NoError(t, err)
    assert.Equal(t, int64(2), n)
}
