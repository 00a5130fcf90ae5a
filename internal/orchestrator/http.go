package orchestrator

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/analysis"
)

type submitReq struct {
    JobID    string `json:"job_id"`
    TextRef  string `json:"text_ref"`
    GuideRef string `json:"guide_ref"`
    Kind     string `json:"kind"`
}

type submitResp struct {
    Status string `json:"status"`
    JobID  string `json:"job_id"`
}

// RegisterRoutes wires the job API onto the mux.
func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
    mux.HandleFunc("/analysis", o.handleSubmit)
    mux.HandleFunc("/analysis/progress/", o.handleProgress)
    mux.HandleFunc("/analysis/", o.handleJob)
}

// handleSubmit accepts a new analysis job, either as JSON with artifact refs
// or as a multipart upload.
func (o *Orchestrator) handleSubmit(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    defer r.Body.Close()

    var sub Submission
    ct := r.Header.Get("Content-Type")
    if strings.HasPrefix(ct, "multipart/form-data") {
        s, err := o.submissionFromUpload(r)
        if err != nil {
            http.Error(w, err.Error(), http.StatusBadRequest)
            return
        }
        sub = s
    } else {
        var req submitReq
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            http.Error(w, "invalid json", http.StatusBadRequest)
            return
        }
        if req.TextRef == "" {
            http.Error(w, "missing text_ref", http.StatusBadRequest)
            return
        }
        sub = Submission{JobID: req.JobID, TextRef: req.TextRef, GuideRef: req.GuideRef, Kind: req.Kind}
    }

    if sub.JobID == "" {
        sub.JobID = uuid.NewString()
    }
    kind := analysis.ParseKind(sub.Kind)
    sub.Kind = string(kind)

    job := analysis.New(sub.JobID, kind)
    if err := o.deps.Publisher.Publish(r.Context(), job.Snapshot()); err != nil {
        http.Error(w, "store unavailable", http.StatusServiceUnavailable)
        return
    }

    payload, _ := json.Marshal(sub)
    if err := o.deps.Queue.Enqueue(r.Context(), payload); err != nil {
        log.Error().Err(err).Str("job_id", sub.JobID).Msg("enqueue failed")
        // The queued snapshot is already stored; flip it to error so no
        // poller waits on a job no runner will ever pick up.
        job.Status = analysis.StatusError
        job.Message = "submission failed"
        job.Error = "enqueue failed"
        job.Touch()
        if perr := o.deps.Publisher.Publish(r.Context(), job.Snapshot()); perr != nil {
            log.Warn().Err(perr).Str("job_id", sub.JobID).Msg("error snapshot publish failed")
        }
        http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
        return
    }

    log.Info().Str("job_id", sub.JobID).Str("kind", sub.Kind).Str("text_ref", sub.TextRef).Msg("job created")
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    _ = json.NewEncoder(w).Encode(submitResp{Status: "ok", JobID: sub.JobID})
}

// submissionFromUpload persists multipart files to the upload dir and returns
// a submission referencing them.
func (o *Orchestrator) submissionFromUpload(r *http.Request) (Submission, error) {
    if err := r.ParseMultipartForm(64 << 20); err != nil {
        return Submission{}, errors.New("invalid multipart form")
    }

    uploadDir := o.deps.Cfg.Pipeline.UploadDir
    if uploadDir == "" {
        uploadDir = "uploads"
    }
    if err := os.MkdirAll(uploadDir, 0o755); err != nil {
        return Submission{}, errors.New("cannot create upload dir")
    }

    textRef, err := saveUpload(r, "file", uploadDir)
    if err != nil {
        return Submission{}, err
    }
    if textRef == "" {
        return Submission{}, errors.New("missing file")
    }

    guideRef, err := saveUpload(r, "guide", uploadDir)
    if err != nil {
        return Submission{}, err
    }

    return Submission{
        JobID:    r.FormValue("job_id"),
        TextRef:  textRef,
        GuideRef: guideRef,
        Kind:     r.FormValue("kind"),
    }, nil
}

func saveUpload(r *http.Request, field, uploadDir string) (string, error) {
    file, hdr, err := r.FormFile(field)
    if err != nil {
        if errors.Is(err, http.ErrMissingFile) {
            return "", nil
        }
        return "", fmt.Errorf("read %s: invalid upload", field)
    }
    defer file.Close()

    name := hdr.Filename
    if name == "" {
        name = field
    }
    localPath := fmt.Sprintf("%s/%s_%s", strings.TrimRight(uploadDir, "/"), uuid.NewString(), name)
    out, err := os.Create(localPath)
    if err != nil {
        return "", errors.New("cannot save upload")
    }
    if _, err := io.Copy(out, file); err != nil {
        out.Close()
        return "", errors.New("write failed")
    }
    _ = out.Close()
    return "file://" + localPath, nil
}

// handleProgress returns the stored snapshot for a job.
func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    id := strings.TrimPrefix(r.URL.Path, "/analysis/progress/")
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

    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(job)
}

// handleJob currently serves DELETE /analysis/{id} for cancellation.
func (o *Orchestrator) handleJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    id := strings.TrimPrefix(r.URL.Path, "/analysis/")
    if id == "" || strings.Contains(id, "/") {
        http.Error(w, "missing job id", http.StatusBadRequest)
        return
    }

    o.Cancel(r.Context(), id)

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusAccepted)
    _ = json.NewEncoder(w).Encode(map[string]string{"status": "cancelling", "job_id": id})
}

// Cancel signals a running job, marks the id cancelled for queued work and
// flips a still-pending stored record to aborted so pollers see the outcome
// even when no runner ever picks the job up.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) {
    signalled := o.deps.Registry.Signal(jobID)
    if err := o.deps.Queue.CancelJob(ctx, jobID); err != nil {
        log.Warn().Err(err).Str("job_id", jobID).Msg("cancelled-set update failed")
    }

    if !signalled {
        job, err := o.deps.Store.Get(ctx, jobID)
        if err == nil && !job.Status.Terminal() {
            job.Status = analysis.StatusAborted
            job.Message = "cancelled"
            job.Touch()
            if perr := o.deps.Publisher.Publish(ctx, job); perr != nil {
                log.Warn().Err(perr).Str("job_id", jobID).Msg("abort snapshot publish failed")
            }
        }
    }

    log.Info().Str("job_id", jobID).Bool("was_running", signalled).Msg("cancellation requested")
}
