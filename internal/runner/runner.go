package runner

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/metrics"
    "github.com/torijune/Survey-AI-sub000/internal/orchestrator"
)

// Queue is the dequeue side of the submission stream.
type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
    Ack(ctx context.Context, msgID string) error
    Depth(ctx context.Context) (int64, error)
}

type Config struct {
    Concurrency  int
    PollInterval time.Duration
}

// Runner consumes queued submissions and hands each to the orchestrator on
// its own goroutine.
type Runner struct {
    cfg  Config
    q    Queue
    orch *orchestrator.Orchestrator
    stop chan struct{}
    wg   sync.WaitGroup
}

func New(cfg Config, q Queue, orch *orchestrator.Orchestrator) *Runner {
    if cfg.Concurrency <= 0 {
        cfg.Concurrency = 2
    }
    if cfg.PollInterval <= 0 {
        cfg.PollInterval = 2 * time.Second
    }
    return &Runner{cfg: cfg, q: q, orch: orch, stop: make(chan struct{})}
}

func (r *Runner) Start() {
    for i := 0; i < r.cfg.Concurrency; i++ {
        r.wg.Add(1)
        go r.loop(i)
    }
    r.wg.Add(1)
    go r.depthLoop()
}

// Stop signals all loops and waits for in-flight jobs up to ctx's deadline.
func (r *Runner) Stop(ctx context.Context) error {
    close(r.stop)
    done := make(chan struct{})
    go func() {
        r.wg.Wait()
        close(done)
    }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (r *Runner) loop(id int) {
    defer r.wg.Done()
    consumer := fmt.Sprintf("runner-%d", id)
    log.Info().Int("runner", id).Msg("runner started")
    for {
        select {
        case <-r.stop:
            log.Info().Int("runner", id).Msg("runner stopped")
            return
        default:
        }

        msgID, data, err := r.q.Dequeue(context.Background(), consumer, r.cfg.PollInterval)
        if err != nil {
            log.Error().Err(err).Msg("queue dequeue error")
            time.Sleep(500 * time.Millisecond)
            continue
        }
        if data == nil {
            continue
        }
        if err := r.q.Ack(context.Background(), msgID); err != nil {
            log.Warn().Err(err).Str("msg_id", msgID).Msg("ack failed")
        }

        var sub orchestrator.Submission
        if err := json.Unmarshal(data, &sub); err != nil || sub.JobID == "" {
            log.Error().Err(err).Str("msg_id", msgID).Msg("dropping malformed submission")
            continue
        }

        r.orch.Run(context.Background(), sub)
    }
}

// depthLoop samples the stream length for the queue depth gauge.
func (r *Runner) depthLoop() {
    defer r.wg.Done()
    ticker := time.NewTicker(5 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-r.stop:
            return
        case <-ticker.C:
            if n, err := r.q.Depth(context.Background()); err == nil {
                metrics.SetQueueDepth(n)
            }
        }
    }
}
