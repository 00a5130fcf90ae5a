package publisher

import (
    "context"
    "errors"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
)

type fakeStore struct {
    mu    sync.Mutex
    jobs  map[string]analysis.Job
    fail  bool
    calls int
}

func newFakeStore() *fakeStore {
    return &fakeStore{jobs: make(map[string]analysis.Job)}
}

func (s *fakeStore) Upsert(_ context.Context, job analysis.Job) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.calls++
    if s.fail {
        return errors.New("store down")
    }
    s.jobs[job.ID] = job
    return nil
}

func (s *fakeStore) get(id string) (analysis.Job, bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    j, ok := s.jobs[id]
    return j, ok
}

func snap(id string, status analysis.Status, current int) analysis.Job {
    j := *analysis.New(id, analysis.KindSummary)
    j.Status = status
    j.Current = current
    return j
}

func TestPublishWritesThrough(t *testing.T) {
    store := newFakeStore()
    p := New(store)

    require.NoError(t, p.Publish(context.Background(), snap("j1", analysis.StatusChunking, 0)))

    got, ok := store.get("j1")
    require.True(t, ok)
    assert.Equal(t, analysis.StatusChunking, got.Status)
}

func TestPublishStoreErrorSkipsFanout(t *testing.T) {
    store := newFakeStore()
    store.fail = true
    p := New(store)
    sub := p.Subscribe("j1")

    err := p.Publish(context.Background(), snap("j1", analysis.StatusChunking, 0))
    require.Error(t, err)

    select {
    case got := <-sub.C:
        t.Fatalf("unexpected snapshot delivered: %+v", got)
    default:
    }
    p.Unsubscribe(sub)
}

func TestSubscriberReceivesSnapshots(t *testing.T) {
    store := newFakeStore()
    p := New(store)
    sub := p.Subscribe("j1")
    defer p.Unsubscribe(sub)

    require.NoError(t, p.Publish(context.Background(), snap("j1", analysis.StatusSummarizing, 1)))
    require.NoError(t, p.Publish(context.Background(), snap("j1", analysis.StatusSummarizing, 2)))

    first := <-sub.C
    second := <-sub.C
    assert.Equal(t, 1, first.Current)
    assert.Equal(t, 2, second.Current)
}

func TestLateSubscriberGetsOnlyNewSnapshots(t *testing.T) {
    store := newFakeStore()
    p := New(store)

    require.NoError(t, p.Publish(context.Background(), snap("j1", analysis.StatusSummarizing, 1)))

    sub := p.Subscribe("j1")
    defer p.Unsubscribe(sub)

    require.NoError(t, p.Publish(context.Background(), snap("j1", analysis.StatusSummarizing, 2)))
    got := <-sub.C
    assert.Equal(t, 2, got.Current)
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
    store := newFakeStore()
    p := New(store)
    sub := p.Subscribe("j1")
    defer p.Unsubscribe(sub)

    for i := 1; i <= subscriberBuffer+5; i++ {
        require.NoError(t, p.Publish(context.Background(), snap("j1", analysis.StatusSummarizing, i)))
    }

    // The newest snapshot is always retained.
    var last analysis.Job
    for {
        select {
        case got := <-sub.C:
            last = got
            continue
        default:
        }
        break
    }
    assert.Equal(t, subscriberBuffer+5, last.Current)
}

func TestTerminalSnapshotClosesSubscribers(t *testing.T) {
    store := newFakeStore()
    p := New(store)
    sub := p.Subscribe("j1")

    require.NoError(t, p.Publish(context.Background(), snap("j1", analysis.StatusCompleted, 3)))

    got, ok := <-sub.C
    require.True(t, ok)
    assert.Equal(t, analysis.StatusCompleted, got.Status)

    _, ok = <-sub.C
    assert.False(t, ok, "channel should be closed after terminal snapshot")
    assert.Equal(t, 0, p.Subscribers("j1"))

    // Unsubscribe after terminal close is a no-op.
    p.Unsubscribe(sub)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
    store := newFakeStore()
    p := New(store)
    sub := p.Subscribe("j1")

    p.Unsubscribe(sub)
    _, ok := <-sub.C
    assert.False(t, ok)
    assert.Equal(t, 0, p.Subscribers("j1"))
}
