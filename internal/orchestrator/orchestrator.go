package orchestrator

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/ai"
    "github.com/torijune/Survey-AI-sub000/internal/analysis"
    "github.com/torijune/Survey-AI-sub000/internal/chunker"
    "github.com/torijune/Survey-AI-sub000/internal/config"
    "github.com/torijune/Survey-AI-sub000/internal/metrics"
    "github.com/torijune/Survey-AI-sub000/internal/publisher"
    "github.com/torijune/Survey-AI-sub000/internal/registry"
)

// Submission is the queued unit of work for one analysis job.
type Submission struct {
    JobID    string `json:"job_id"`
    Kind     string `json:"kind"`
    TextRef  string `json:"text_ref"`
    GuideRef string `json:"guide_ref,omitempty"`
}

// Store is the job record read/write surface the orchestrator needs.
type Store interface {
    Get(ctx context.Context, jobID string) (analysis.Job, error)
    Upsert(ctx context.Context, snap analysis.Job) error
}

// Queue is the cancellation-aware submission queue surface.
type Queue interface {
    Enqueue(ctx context.Context, payload []byte) error
    CancelJob(ctx context.Context, jobID string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
}

// Extractor turns an artifact reference into plain text.
type Extractor interface {
    Text(ctx context.Context, ref string) (string, error)
}

// Completer runs one LLM completion.
type Completer interface {
    Complete(ctx context.Context, req ai.Request) (ai.Response, error)
}

// Dependencies wires the orchestrator to its collaborators.
type Dependencies struct {
    Publisher *publisher.Publisher
    Store     Store
    Registry  *registry.Registry
    Queue     Queue
    Extractor Extractor
    LLM       Completer
    Cfg       config.Config
}

// Orchestrator drives jobs through the extract, chunk, summarize and reduce
// phases, publishing a snapshot after every visible state change.
type Orchestrator struct {
    deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
    return &Orchestrator{deps: deps}
}

// Run executes one job to a terminal status. It is called by a runner
// goroutine after the submission is dequeued; the job owns its record for the
// duration of the call.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) {
    jobID := sub.JobID
    kind := analysis.ParseKind(sub.Kind)

    // The handle must be live before the cancelled-set check, otherwise a
    // cancel landing between the check and registration signals nothing and
    // the job runs to completion over an already-aborted record.
    handle := o.deps.Registry.Register(jobID)
    defer o.deps.Registry.Unregister(jobID)

    // A cancellation issued while the job sat in the queue aborts it before
    // any work starts.
    if cancelled, err := o.deps.Queue.IsCancelled(ctx, jobID); err != nil {
        log.Warn().Err(err).Str("job_id", jobID).Msg("cancelled-set check failed, continuing")
    } else if cancelled {
        o.finishAborted(ctx, analysis.New(jobID, kind), "cancelled before start")
        return
    }
    if handle.Signaled() {
        o.finishAborted(ctx, analysis.New(jobID, kind), "cancelled before start")
        return
    }

    job, err := o.deps.Store.Get(ctx, jobID)
    if err != nil {
        if !errors.Is(err, analysis.ErrUnknownJob) {
            log.Warn().Err(err).Str("job_id", jobID).Msg("job record fetch failed, starting fresh")
        }
        job = *analysis.New(jobID, kind)
    }
    job.Kind = kind

    // --- extract ---
    job.Status = analysis.StatusExtracting
    job.Message = "extracting text"
    o.publish(ctx, &job)

    text, err := o.deps.Extractor.Text(ctx, sub.TextRef)
    if err != nil {
        o.finishError(ctx, &job, fmt.Errorf("extract transcript: %w", err))
        return
    }

    guide := ""
    if sub.GuideRef != "" {
        guide, err = o.deps.Extractor.Text(ctx, sub.GuideRef)
        if err != nil {
            // The guide only enriches prompts, its loss is not fatal.
            log.Warn().Err(err).Str("job_id", jobID).Msg("guide extraction failed, continuing without it")
            guide = ""
        }
    }

    if handle.Signaled() {
        o.finishAborted(ctx, &job, "cancelled during extraction")
        return
    }

    // --- chunk ---
    job.Status = analysis.StatusChunking
    job.Message = "splitting transcript"
    o.publish(ctx, &job)

    chunks := chunker.Chunk(text, o.deps.Cfg.Pipeline.MaxChunkLen)
    batches := chunker.Group(chunks, o.deps.Cfg.Pipeline.GroupSize)

    job.Total = len(batches)
    job.Current = 0
    job.Batches = make([]analysis.BatchSummary, len(batches))
    for i := range job.Batches {
        job.Batches[i] = analysis.BatchSummary{Index: i + 1, Status: analysis.BatchPending}
    }
    o.publish(ctx, &job)

    if job.Total == 0 {
        job.Status = analysis.StatusCompleted
        job.Message = "nothing to summarize"
        job.FinalSummary = ""
        o.publish(ctx, &job)
        metrics.IncJob(string(kind), string(job.Status))
        return
    }

    prompts := analysis.Prompts(kind)
    batchSystem := analysis.WithGuide(prompts.Batch, guide)

    // --- summarize ---
    job.Status = analysis.StatusSummarizing
    job.Message = "summarizing"
    o.publish(ctx, &job)

    for i, batchText := range batches {
        if handle.Signaled() {
            o.finishAborted(ctx, &job, "cancelled")
            return
        }

        job.Batches[i].Status = analysis.BatchProcessing
        job.Message = fmt.Sprintf("summarizing batch %d of %d", i+1, job.Total)
        o.publish(ctx, &job)

        resp, err := o.deps.LLM.Complete(ctx, ai.Request{
            JobID:  jobID,
            Batch:  i + 1,
            System: batchSystem,
            User:   batchText,
        })

        // A cancel that lands while the call is in flight wins; the result
        // is discarded and current stays at the finished count.
        if handle.Signaled() {
            job.Batches[i].Status = analysis.BatchPending
            job.Batches[i].Text = ""
            o.finishAborted(ctx, &job, "cancelled")
            return
        }

        if err != nil {
            log.Warn().Err(err).Str("job_id", jobID).Int("batch", i+1).Msg("batch summarization failed")
            job.Batches[i].Status = analysis.BatchError
            metrics.IncBatch("error")
        } else {
            job.Batches[i].Status = analysis.BatchCompleted
            job.Batches[i].Text = resp.Text
            metrics.IncBatch("success")
        }
        job.Current = i + 1
        o.publish(ctx, &job)
    }

    if handle.Signaled() {
        o.finishAborted(ctx, &job, "cancelled")
        return
    }

    // --- reduce ---
    job.Status = analysis.StatusFinalizing
    job.Message = "building final summary"
    o.publish(ctx, &job)

    var parts []string
    for _, b := range job.Batches {
        if b.Status == analysis.BatchCompleted {
            parts = append(parts, b.Text)
        }
    }

    resp, err := o.deps.LLM.Complete(ctx, ai.Request{
        JobID:  jobID,
        System: analysis.WithGuide(prompts.Reduce, guide),
        User:   strings.Join(parts, "\n"),
    })
    if err != nil {
        o.finishError(ctx, &job, fmt.Errorf("final summary: %w", err))
        return
    }

    job.Status = analysis.StatusCompleted
    job.Message = "completed"
    job.FinalSummary = resp.Text
    o.publish(ctx, &job)
    metrics.IncJob(string(kind), string(job.Status))

    log.Info().
        Str("job_id", jobID).
        Str("kind", string(kind)).
        Int("batches", job.Total).
        Msg("job completed")
}

func (o *Orchestrator) publish(ctx context.Context, job *analysis.Job) {
    job.Touch()
    if err := o.deps.Publisher.Publish(ctx, job.Snapshot()); err != nil {
        log.Error().Err(err).Str("job_id", job.ID).Msg("progress publish failed")
    }
}

func (o *Orchestrator) finishAborted(ctx context.Context, job *analysis.Job, msg string) {
    job.Status = analysis.StatusAborted
    job.Message = msg
    o.publish(ctx, job)
    metrics.IncJob(string(job.Kind), string(job.Status))
    log.Info().Str("job_id", job.ID).Str("reason", msg).Msg("job aborted")
}

func (o *Orchestrator) finishError(ctx context.Context, job *analysis.Job, err error) {
    job.Status = analysis.StatusError
    job.Message = "failed"
    job.Error = err.Error()
    o.publish(ctx, job)
    metrics.IncJob(string(job.Kind), string(job.Status))
    log.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
}
