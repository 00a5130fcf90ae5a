package client

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/gorilla/websocket"
    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
)

// Options configures a progress consumer.
type Options struct {
    BaseURL      string
    Heartbeat    time.Duration
    PollInterval time.Duration
}

// Consumer follows one job's progress over the push socket, falling back to
// polling when the socket cannot be established or drops mid-stream.
type Consumer struct {
    opts Options
    http *http.Client
}

func New(opts Options) *Consumer {
    if opts.Heartbeat <= 0 {
        opts.Heartbeat = 15 * time.Second
    }
    if opts.PollInterval <= 0 {
        opts.PollInterval = 2 * time.Second
    }
    opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
    return &Consumer{opts: opts, http: &http.Client{Timeout: 10 * time.Second}}
}

// Watch follows the job until it reaches a terminal status. onUpdate, if
// non-nil, receives the merged view after every accepted snapshot. The final
// merged view is returned.
func (c *Consumer) Watch(ctx context.Context, jobID string, onUpdate func(analysis.Job)) (analysis.Job, error) {
    var view analysis.Job
    view.ID = jobID

    final, err := c.watchSocket(ctx, jobID, &view, onUpdate)
    if err == nil {
        return final, nil
    }
    if ctx.Err() != nil {
        return view, ctx.Err()
    }
    log.Warn().Err(err).Str("job_id", jobID).Msg("push stream unavailable, polling instead")
    return c.poll(ctx, jobID, &view, onUpdate)
}

func (c *Consumer) wsURL(jobID string) string {
    base := c.opts.BaseURL
    base = strings.Replace(base, "https://", "wss://", 1)
    base = strings.Replace(base, "http://", "ws://", 1)
    return base + "/ws/progress/" + jobID
}

func (c *Consumer) watchSocket(ctx context.Context, jobID string, view *analysis.Job, onUpdate func(analysis.Job)) (analysis.Job, error) {
    conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(jobID), nil)
    if err != nil {
        return analysis.Job{}, fmt.Errorf("dial progress socket: %w", err)
    }
    defer conn.Close()

    // Periodic keep-alive writes; the server discards the payload.
    stopBeat := make(chan struct{})
    defer close(stopBeat)
    go func() {
        ticker := time.NewTicker(c.opts.Heartbeat)
        defer ticker.Stop()
        for {
            select {
            case <-stopBeat:
                return
            case <-ctx.Done():
                return
            case <-ticker.C:
                _ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
            }
        }
    }()

    for {
        if dl, ok := ctx.Deadline(); ok {
            _ = conn.SetReadDeadline(dl)
        }
        var snap analysis.Job
        if err := conn.ReadJSON(&snap); err != nil {
            return *view, fmt.Errorf("read progress snapshot: %w", err)
        }
        merge(view, snap)
        if onUpdate != nil {
            onUpdate(*view)
        }
        if view.Status.Terminal() {
            return *view, nil
        }
    }
}

func (c *Consumer) poll(ctx context.Context, jobID string, view *analysis.Job, onUpdate func(analysis.Job)) (analysis.Job, error) {
    ticker := time.NewTicker(c.opts.PollInterval)
    defer ticker.Stop()
    for {
        snap, err := c.Progress(ctx, jobID)
        if err != nil {
            return *view, err
        }
        merge(view, snap)
        if onUpdate != nil {
            onUpdate(*view)
        }
        if view.Status.Terminal() {
            return *view, nil
        }
        select {
        case <-ctx.Done():
            return *view, ctx.Err()
        case <-ticker.C:
        }
    }
}

// Progress fetches the stored snapshot once.
func (c *Consumer) Progress(ctx context.Context, jobID string) (analysis.Job, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/analysis/progress/"+jobID, nil)
    if err != nil {
        return analysis.Job{}, err
    }
    resp, err := c.http.Do(req)
    if err != nil {
        return analysis.Job{}, err
    }
    defer resp.Body.Close()
    if resp.StatusCode == http.StatusNotFound {
        return analysis.Job{}, analysis.ErrUnknownJob
    }
    if resp.StatusCode != http.StatusOK {
        return analysis.Job{}, fmt.Errorf("progress status %d", resp.StatusCode)
    }
    var job analysis.Job
    if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
        return analysis.Job{}, err
    }
    return job, nil
}

// Cancel requests cooperative cancellation of the job.
func (c *Consumer) Cancel(ctx context.Context, jobID string) error {
    req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.opts.BaseURL+"/analysis/"+jobID, nil)
    if err != nil {
        return err
    }
    resp, err := c.http.Do(req)
    if err != nil {
        return err
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
        return fmt.Errorf("cancel status %d", resp.StatusCode)
    }
    return nil
}

var batchRank = map[analysis.BatchStatus]int{
    analysis.BatchPending:    0,
    analysis.BatchProcessing: 1,
    analysis.BatchCompleted:  2,
    analysis.BatchError:      2,
}

var statusRank = map[analysis.Status]int{
    analysis.StatusQueued:      0,
    analysis.StatusExtracting:  1,
    analysis.StatusChunking:    2,
    analysis.StatusSummarizing: 3,
    analysis.StatusFinalizing:  4,
    analysis.StatusCompleted:   5,
    analysis.StatusAborted:     5,
    analysis.StatusError:       5,
}

// merge folds a snapshot into the view. Snapshots are full copies of the job
// record, so merging by batch index makes duplicated or reordered delivery
// idempotent: the status phase, the batches and current never move backwards.
func merge(view *analysis.Job, snap analysis.Job) {
    if view.Status.Terminal() {
        return
    }

    view.Kind = snap.Kind
    if statusRank[snap.Status] >= statusRank[view.Status] {
        view.Status = snap.Status
        view.Message = snap.Message
        view.Error = snap.Error
        view.UpdatedAt = snap.UpdatedAt
    }
    view.CreatedAt = snap.CreatedAt
    if snap.Total > 0 {
        view.Total = snap.Total
    }
    if snap.Current > view.Current {
        view.Current = snap.Current
    }
    if snap.FinalSummary != "" {
        view.FinalSummary = snap.FinalSummary
    }

    if len(view.Batches) < len(snap.Batches) {
        grown := make([]analysis.BatchSummary, len(snap.Batches))
        copy(grown, view.Batches)
        for i := len(view.Batches); i < len(grown); i++ {
            grown[i] = analysis.BatchSummary{Index: i + 1, Status: analysis.BatchPending}
        }
        view.Batches = grown
    }
    for _, b := range snap.Batches {
        i := b.Index - 1
        if i < 0 || i >= len(view.Batches) {
            continue
        }
        if batchRank[b.Status] >= batchRank[view.Batches[i].Status] {
            view.Batches[i] = b
        }
    }
}
