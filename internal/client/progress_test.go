package client

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
)

func snap(status analysis.Status, current, total int) analysis.Job {
    return analysis.Job{ID: "j1", Kind: analysis.KindSummary, Status: status, Current: current, Total: total}
}

func TestMergeIdempotentAndMonotonic(t *testing.T) {
    var view analysis.Job
    view.ID = "j1"

    s1 := snap(analysis.StatusSummarizing, 1, 2)
    s1.Batches = []analysis.BatchSummary{
        {Index: 1, Status: analysis.BatchCompleted, Text: "one"},
        {Index: 2, Status: analysis.BatchProcessing},
    }
    merge(&view, s1)
    merge(&view, s1) // duplicate delivery
    assert.Equal(t, 1, view.Current)
    assert.Equal(t, analysis.BatchCompleted, view.Batches[0].Status)

    // a stale snapshot cannot move batches or current backwards
    stale := snap(analysis.StatusSummarizing, 0, 2)
    stale.Batches = []analysis.BatchSummary{
        {Index: 1, Status: analysis.BatchPending},
        {Index: 2, Status: analysis.BatchPending},
    }
    merge(&view, stale)
    assert.Equal(t, 1, view.Current)
    assert.Equal(t, analysis.BatchCompleted, view.Batches[0].Status)
    assert.Equal(t, "one", view.Batches[0].Text)

    s2 := snap(analysis.StatusCompleted, 2, 2)
    s2.FinalSummary = "final"
    s2.Batches = []analysis.BatchSummary{
        {Index: 1, Status: analysis.BatchCompleted, Text: "one"},
        {Index: 2, Status: analysis.BatchCompleted, Text: "two"},
    }
    merge(&view, s2)
    assert.Equal(t, analysis.StatusCompleted, view.Status)
    assert.Equal(t, "final", view.FinalSummary)

    // nothing mutates a terminal view
    merge(&view, snap(analysis.StatusSummarizing, 1, 2))
    assert.Equal(t, analysis.StatusCompleted, view.Status)
}

func TestMergeStatusPhaseIsMonotonic(t *testing.T) {
    var view analysis.Job
    view.ID = "j1"

    merge(&view, snap(analysis.StatusFinalizing, 2, 2))
    require.Equal(t, analysis.StatusFinalizing, view.Status)

    // a reordered earlier-phase snapshot cannot move the status backwards
    stale := snap(analysis.StatusSummarizing, 1, 2)
    stale.Message = "summarizing batch 2"
    merge(&view, stale)
    assert.Equal(t, analysis.StatusFinalizing, view.Status)
    assert.NotEqual(t, "summarizing batch 2", view.Message)
}

func TestMergeGrowsBatchSlots(t *testing.T) {
    var view analysis.Job
    s := snap(analysis.StatusSummarizing, 0, 3)
    s.Batches = []analysis.BatchSummary{
        {Index: 3, Status: analysis.BatchProcessing},
    }
    merge(&view, s)
    require.Len(t, view.Batches, 1)
    assert.Equal(t, analysis.BatchProcessing, view.Batches[0].Status)
}

func TestWatchOverSocket(t *testing.T) {
    upgrader := websocket.Upgrader{}
    mux := http.NewServeMux()
    mux.HandleFunc("/ws/progress/j1", func(w http.ResponseWriter, r *http.Request) {
        conn, err := upgrader.Upgrade(w, r, nil)
        require.NoError(t, err)
        defer conn.Close()

        go func() {
            for {
                if _, _, err := conn.ReadMessage(); err != nil {
                    return
                }
            }
        }()

        require.NoError(t, conn.WriteJSON(snap(analysis.StatusSummarizing, 1, 2)))
        final := snap(analysis.StatusCompleted, 2, 2)
        final.FinalSummary = "done"
        require.NoError(t, conn.WriteJSON(final))
    })
    srv := httptest.NewServer(mux)
    defer srv.Close()

    c := New(Options{BaseURL: srv.URL, Heartbeat: 10 * time.Millisecond})

    var updates []analysis.Job
    got, err := c.Watch(context.Background(), "j1", func(j analysis.Job) {
        updates = append(updates, j)
    })
    require.NoError(t, err)
    assert.Equal(t, analysis.StatusCompleted, got.Status)
    assert.Equal(t, "done", got.FinalSummary)
    require.Len(t, updates, 2)
    assert.Equal(t, 1, updates[0].Current)
}

func TestWatchFallsBackToPolling(t *testing.T) {
    // No websocket route: the dial fails and Watch polls the progress
    // endpoint instead.
    calls := 0
    mux := http.NewServeMux()
    mux.HandleFunc("/analysis/progress/j1", func(w http.ResponseWriter, r *http.Request) {
        calls++
        s := snap(analysis.StatusSummarizing, 1, 2)
        if calls >= 2 {
            s = snap(analysis.StatusCompleted, 2, 2)
            s.FinalSummary = "polled"
        }
        _ = json.NewEncoder(w).Encode(s)
    })
    srv := httptest.NewServer(mux)
    defer srv.Close()

    c := New(Options{BaseURL: srv.URL, PollInterval: 10 * time.Millisecond})

    got, err := c.Watch(context.Background(), "j1", nil)
    require.NoError(t, err)
    assert.Equal(t, analysis.StatusCompleted, got.Status)
    assert.Equal(t, "polled", got.FinalSummary)
    assert.GreaterOrEqual(t, calls, 2)
}

func TestWatchUnknownJob(t *testing.T) {
    mux := http.NewServeMux()
    mux.HandleFunc("/ws/progress/", func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "unknown job", http.StatusNotFound)
    })
    mux.HandleFunc("/analysis/progress/", func(w http.ResponseWriter, r *http.Request) {
        http.Error(w, "unknown job", http.StatusNotFound)
    })
    srv := httptest.NewServer(mux)
    defer srv.Close()

    c := New(Options{BaseURL: srv.URL, PollInterval: 10 * time.Millisecond})
    _, err := c.Watch(context.Background(), "nope", nil)
    assert.ErrorIs(t, err, analysis.ErrUnknownJob)
}

func TestCancel(t *testing.T) {
    var gotMethod, gotPath string
    mux := http.NewServeMux()
    mux.HandleFunc("/analysis/", func(w http.ResponseWriter, r *http.Request) {
        gotMethod = r.Method
        gotPath = r.URL.Path
        w.WriteHeader(http.StatusAccepted)
    })
    srv := httptest.NewServer(mux)
    defer srv.Close()

    c := New(Options{BaseURL: srv.URL})
    require.NoError(t, c.Cancel(context.Background(), "j1"))
    assert.Equal(t, http.MethodDelete, gotMethod)
    assert.True(t, strings.HasSuffix(gotPath, "/analysis/j1"))
}
