package orchestrator

import (
    "errors"
    "net/http"
    "strings"

    "github.com/gorilla/websocket"
    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
)

var upgrader = websocket.Upgrader{
    ReadBufferSize:  1024,
    WriteBufferSize: 1024,
    CheckOrigin: func(r *http.Request) bool {
        return true
    },
}

// RegisterWS wires the per-job progress socket onto the mux.
func (o *Orchestrator) RegisterWS(mux *http.ServeMux) {
    mux.HandleFunc("/ws/progress/", o.handleProgressWS)
}

// handleProgressWS streams progress snapshots for one job. The stored
// snapshot is sent first so a late subscriber starts from current state;
// the channel is closed by the publisher once the job is terminal.
func (o *Orchestrator) handleProgressWS(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/ws/progress/")
    if id == "" {
        http.Error(w, "missing job id", http.StatusBadRequest)
        return
    }

    job, err := o.deps.Store.Get(r.Context(), id)
    if err != nil {
        if errors.Is(err, analysis.ErrUnknownJob) {
            http.Error(w, "unknown job", http.StatusNotFound)
            return
        }
        http.Error(w, "store unavailable", http.StatusServiceUnavailable)
        return
    }

    // Subscribe before the upgrade so no snapshot between the store read and
    // the first push is missed.
    sub := o.deps.Publisher.Subscribe(id)

    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        o.deps.Publisher.Unsubscribe(sub)
        log.Warn().Err(err).Str("job_id", id).Msg("websocket upgrade failed")
        return
    }

    log.Debug().Str("job_id", id).Msg("progress subscriber connected")

    done := make(chan struct{})

    // Reader loop: clients send periodic keep-alive text frames; the payload
    // is irrelevant, a read error means the client went away.
    go func() {
        defer close(done)
        for {
            if _, _, err := conn.ReadMessage(); err != nil {
                if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
                    log.Warn().Err(err).Str("job_id", id).Msg("websocket read error")
                }
                return
            }
        }
    }()

    defer func() {
        o.deps.Publisher.Unsubscribe(sub)
        conn.Close()
        log.Debug().Str("job_id", id).Msg("progress subscriber disconnected")
    }()

    if err := conn.WriteJSON(job); err != nil {
        return
    }
    if job.Status.Terminal() {
        return
    }

    for {
        select {
        case snap, ok := <-sub.C:
            if !ok {
                return
            }
            if err := conn.WriteJSON(snap); err != nil {
                return
            }
            if snap.Status.Terminal() {
                return
            }
        case <-done:
            return
        }
    }
}
