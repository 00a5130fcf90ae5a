package publisher

import (
    "context"
    "sync"

    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
    "github.com/torijune/Survey-AI-sub000/internal/metrics"
)

// subscriberBuffer bounds the per-subscriber channel. A slow consumer loses
// intermediate snapshots, never the latest delivered one.
const subscriberBuffer = 16

// Store persists job snapshots so pollers see the same state pushers see.
type Store interface {
    Upsert(ctx context.Context, job analysis.Job) error
}

// Subscriber receives progress snapshots for one job. The channel is closed
// after the terminal snapshot is delivered.
type Subscriber struct {
    jobID string
    C     chan analysis.Job
}

// Publisher is the single write path for job progress: every update is stored
// first, then fanned out to all live subscribers of that job.
type Publisher struct {
    store Store

    mu   sync.Mutex
    subs map[string]map[*Subscriber]struct{}
}

func New(store Store) *Publisher {
    return &Publisher{
        store: store,
        subs:  make(map[string]map[*Subscriber]struct{}),
    }
}

// Publish writes the snapshot through to the store, then pushes it to every
// subscriber of the job. Pushes never block: when a subscriber's buffer is
// full the oldest queued snapshot is dropped to make room. On a terminal
// snapshot all subscribers are closed and removed after delivery.
func (p *Publisher) Publish(ctx context.Context, snap analysis.Job) error {
    if err := p.store.Upsert(ctx, snap); err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    set := p.subs[snap.ID]
    for sub := range set {
        p.push(sub, snap)
    }

    if snap.Status.Terminal() {
        for sub := range set {
            close(sub.C)
        }
        if len(set) > 0 {
            metrics.AddSubscribers(-len(set))
        }
        delete(p.subs, snap.ID)
    }
    return nil
}

func (p *Publisher) push(sub *Subscriber, snap analysis.Job) {
    for {
        select {
        case sub.C <- snap:
            return
        default:
            // buffer full, drop the oldest
            select {
            case old := <-sub.C:
                log.Debug().Str("job_id", old.ID).Msg("subscriber lagging, dropped snapshot")
            default:
            }
        }
    }
}

// Subscribe registers a new subscriber for the job. The caller owns the
// returned subscriber and must call Unsubscribe unless the channel was
// closed by a terminal snapshot.
func (p *Publisher) Subscribe(jobID string) *Subscriber {
    sub := &Subscriber{jobID: jobID, C: make(chan analysis.Job, subscriberBuffer)}
    p.mu.Lock()
    set, ok := p.subs[jobID]
    if !ok {
        set = make(map[*Subscriber]struct{})
        p.subs[jobID] = set
    }
    set[sub] = struct{}{}
    p.mu.Unlock()
    metrics.AddSubscribers(1)
    return sub
}

// Unsubscribe removes the subscriber and closes its channel if still
// registered. Safe to call after a terminal close.
func (p *Publisher) Unsubscribe(sub *Subscriber) {
    p.mu.Lock()
    defer p.mu.Unlock()
    set, ok := p.subs[sub.jobID]
    if !ok {
        return
    }
    if _, registered := set[sub]; !registered {
        return
    }
    delete(set, sub)
    if len(set) == 0 {
        delete(p.subs, sub.jobID)
    }
    close(sub.C)
    metrics.AddSubscribers(-1)
}

// Subscribers reports live subscriber count for the job.
func (p *Publisher) Subscribers(jobID string) int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return len(p.subs[jobID])
}
