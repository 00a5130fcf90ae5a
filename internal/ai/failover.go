package ai

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/torijune/Survey-AI-sub000/internal/config"
    "github.com/torijune/Survey-AI-sub000/internal/metrics"
)

// Breaker gates provider/model pairs after transient failures.
type Breaker interface {
    IsOpen(ctx context.Context, provider, model string) bool
    Open(ctx context.Context, provider, model string)
    Close(ctx context.Context, provider, model string)
    Allow(ctx context.Context, provider, model string) (release func(), ok bool)
}

// noopBreaker never blocks. Used when no limiter is wired.
type noopBreaker struct{}

func (noopBreaker) IsOpen(context.Context, string, string) bool { return false }
func (noopBreaker) Open(context.Context, string, string)       {}
func (noopBreaker) Close(context.Context, string, string)      {}
func (noopBreaker) Allow(context.Context, string, string) (func(), bool) {
    return func() {}, true
}

// Failover tries provider/model pairs in order until one completes:
// primary provider primary model, primary provider secondary model,
// secondary provider primary model, secondary provider secondary model.
// Fatal errors stop the chain immediately.
type Failover struct {
    providers config.ProvidersConfig
    timeout   time.Duration
    clients   map[string]Client
    breaker   Breaker
}

func NewFailover(providers config.ProvidersConfig, timeout time.Duration, breaker Breaker, clients ...Client) *Failover {
    m := make(map[string]Client, len(clients))
    for _, c := range clients {
        m[c.Name()] = c
    }
    if breaker == nil {
        breaker = noopBreaker{}
    }
    return &Failover{providers: providers, timeout: timeout, clients: m, breaker: breaker}
}

type attempt struct {
    provider string
    model    string
}

func (f *Failover) attempts() []attempt {
    primary := f.providers.PrimaryEngine
    secondary := f.providers.SecondaryEngine

    models := func(provider string) config.ProviderModels {
        switch provider {
        case "openai":
            return f.providers.OpenAI
        case "anthropic":
            return f.providers.Anthropic
        }
        return config.ProviderModels{}
    }

    var out []attempt
    seen := make(map[string]bool)
    add := func(provider, model string) {
        if provider == "" || model == "" {
            return
        }
        key := provider + "/" + model
        if seen[key] {
            return
        }
        seen[key] = true
        out = append(out, attempt{provider: provider, model: model})
    }

    pm := models(primary)
    sm := models(secondary)
    add(primary, pm.Primary)
    add(primary, pm.Secondary)
    add(secondary, sm.Primary)
    add(secondary, sm.Secondary)
    return out
}

// Complete runs one completion through the failover chain. The parent ctx
// bounds the whole chain; each attempt additionally gets its own timeout so
// one hung provider cannot eat the entire budget.
func (f *Failover) Complete(ctx context.Context, req Request) (Response, error) {
    var lastErr error

    for i, at := range f.attempts() {
        if err := ctx.Err(); err != nil {
            return Response{}, err
        }

        client, ok := f.clients[at.provider]
        if !ok {
            continue
        }
        if f.breaker.IsOpen(ctx, at.provider, at.model) {
            log.Debug().
                Str("provider", at.provider).
                Str("model", at.model).
                Msg("circuit open, skipping attempt")
            continue
        }
        release, allowed := f.breaker.Allow(ctx, at.provider, at.model)
        if !allowed {
            continue
        }

        attemptReq := req
        attemptReq.Model = at.model

        cctx, cancel := context.WithTimeout(ctx, f.timeout)
        start := time.Now()
        resp, err := client.Do(cctx, attemptReq)
        dur := time.Since(start)
        cancel()
        release()

        if err == nil {
            metrics.ObserveProvider(at.provider, at.model, "success", dur)
            f.breaker.Close(ctx, at.provider, at.model)
            metrics.BreakerClosed(at.provider, at.model)
            log.Debug().
                Str("job_id", req.JobID).
                Int("batch", req.Batch).
                Str("provider", at.provider).
                Str("model", at.model).
                Dur("duration", dur).
                Int("tokens_in", resp.TokensIn).
                Int("tokens_out", resp.TokensOut).
                Msg("provider call success")
            return resp, nil
        }

        result := classify(err)
        metrics.ObserveProvider(at.provider, at.model, result, dur)
        log.Warn().
            Err(err).
            Str("job_id", req.JobID).
            Int("batch", req.Batch).
            Str("provider", at.provider).
            Str("model", at.model).
            Int("attempt", i+1).
            Str("result", result).
            Msg("provider call failed")

        if isFatal(err) {
            return Response{}, err
        }
        if IsContentRefused(err) {
            // Refusals fail over to the next model but say nothing about
            // provider health, so the breaker stays closed.
            metrics.IncRefusal(at.provider, at.model)
        } else if isTransient(err) {
            f.breaker.Open(ctx, at.provider, at.model)
            metrics.BreakerOpened(at.provider, at.model)
        }
        lastErr = err
    }

    metrics.ObserveProvider("all", "all", "exhausted", 0)
    if lastErr == nil {
        lastErr = fmt.Errorf("no providers available for job %s batch %d", req.JobID, req.Batch)
    }
    return Response{}, lastErr
}

func classify(err error) string {
    switch {
    case IsRateLimited(err):
        return "rate_limited"
    case IsContentRefused(err):
        return "content_refused"
    case errors.Is(err, context.DeadlineExceeded):
        return "timeout"
    case isTransient(err):
        return "transient"
    case isFatal(err):
        return "fatal"
    default:
        return "unknown"
    }
}

// isTransient reports whether the error should trigger failover to the next
// provider/model pair.
func isTransient(err error) bool {
    if err == nil {
        return false
    }
    if IsRateLimited(err) || IsContentRefused(err) {
        return true
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return true
    }
    errStr := strings.ToLower(err.Error())
    if strings.Contains(errStr, "connection refused") ||
        strings.Contains(errStr, "connection reset") ||
        strings.Contains(errStr, "timeout") ||
        strings.Contains(errStr, "network") ||
        strings.Contains(errStr, "eof") {
        return true
    }
    // 5xx responses come back as "status NNN" from the clients.
    for code := 500; code < 600; code++ {
        if strings.Contains(errStr, fmt.Sprintf("status %d", code)) {
            return true
        }
    }
    return false
}

// isFatal reports whether retrying another provider cannot help.
func isFatal(err error) bool {
    if err == nil {
        return false
    }
    errStr := strings.ToLower(err.Error())
    return strings.Contains(errStr, "invalid request") ||
        strings.Contains(errStr, "bad request") ||
        strings.Contains(errStr, "malformed") ||
        strings.Contains(errStr, "status 400") ||
        strings.Contains(errStr, "status 401") ||
        strings.Contains(errStr, "status 403")
}
