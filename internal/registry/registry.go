package registry

import "sync"

// Handle is the cancellation handle for one running job. The orchestrator
// polls Signaled at step boundaries; in-flight remote calls are never
// interrupted.
type Handle struct {
    jobID string
    once  sync.Once
    done  chan struct{}
}

// Signal marks the handle cancelled. Safe to call more than once.
func (h *Handle) Signal() {
    h.once.Do(func() { close(h.done) })
}

// Signaled reports whether cancellation has been requested.
func (h *Handle) Signaled() bool {
    select {
    case <-h.done:
        return true
    default:
        return false
    }
}

// Done returns a channel closed when cancellation is requested.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Registry maps live job ids to cancellation handles. It is a lookup table
// only; the orchestrator owns handle lifecycle (register on start, unregister
// on any terminal transition).
type Registry struct {
    mu      sync.Mutex
    handles map[string]*Handle
}

func New() *Registry {
    return &Registry{handles: make(map[string]*Handle)}
}

// Register creates and stores a handle for the job. Registering an id twice
// replaces the previous handle.
func (r *Registry) Register(jobID string) *Handle {
    h := &Handle{jobID: jobID, done: make(chan struct{})}
    r.mu.Lock()
    r.handles[jobID] = h
    r.mu.Unlock()
    return h
}

// Signal cancels the job's handle if one is live. Returns false for unknown
// or already-unregistered ids; signalling twice is a no-op.
func (r *Registry) Signal(jobID string) bool {
    r.mu.Lock()
    h, ok := r.handles[jobID]
    r.mu.Unlock()
    if !ok {
        return false
    }
    h.Signal()
    return true
}

// Unregister drops the job's handle.
func (r *Registry) Unregister(jobID string) {
    r.mu.Lock()
    delete(r.handles, jobID)
    r.mu.Unlock()
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.handles)
}
