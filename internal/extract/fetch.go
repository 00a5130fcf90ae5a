package extract

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strings"
    "time"

    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/rs/zerolog/log"
)

// EnsureLocal returns a local file path for the artifact referenced by ref
// and an optional temp path the caller must remove.
// Supports:
// - file://path or plain filesystem paths
// - http(s):// URLs (downloads to temp)
// - s3://bucket/key (downloads to temp via AWS SDK v2)
func EnsureLocal(ctx context.Context, ref string) (string, string, error) {
    if i := strings.Index(ref, "#"); i >= 0 {
        ref = ref[:i]
    }
    switch {
    case strings.HasPrefix(ref, "file://"):
        return strings.TrimPrefix(ref, "file://"), "", nil
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        p, err := downloadHTTPToTemp(ctx, ref)
        return p, p, err
    case strings.HasPrefix(ref, "s3://"):
        p, err := downloadS3ToTemp(ctx, ref)
        return p, p, err
    default:
        return ref, "", nil
    }
}

func downloadHTTPToTemp(ctx context.Context, url string) (string, error) {
    req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    resp, err := http.DefaultClient.Do(req)
    if err != nil { return "", err }
    defer resp.Body.Close()
    if resp.StatusCode != 200 { return "", fmt.Errorf("http %d", resp.StatusCode) }
    f, err := os.CreateTemp("", "artdl-*")
    if err != nil { return "", err }
    defer f.Close()
    if _, err := io.Copy(f, resp.Body); err != nil { return "", err }
    return f.Name(), nil
}

func downloadS3ToTemp(ctx context.Context, s3url string) (string, error) {
    // s3://bucket/key
    path := strings.TrimPrefix(s3url, "s3://")
    slash := strings.Index(path, "/")
    if slash <= 0 { return "", fmt.Errorf("invalid s3 url: %s", s3url) }
    bucket := path[:slash]
    key := path[slash+1:]

    cfg, err := awscfg.LoadDefaultConfig(ctx)
    if err != nil { return "", err }
    cli := s3.NewFromConfig(cfg)

    out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
    if err != nil { return "", err }
    defer out.Body.Close()

    f, err := os.CreateTemp("", "s3art-*"+filepath.Ext(key))
    if err != nil { return "", err }
    defer f.Close()
    if _, err := io.Copy(f, out.Body); err != nil { return "", err }
    log.Info().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(f.Name())).Msg("downloaded s3 artifact to temp")
    return f.Name(), nil
}

// CleanupTemps removes temp files created by EnsureLocal older than maxAge.
func CleanupTemps(maxAge time.Duration) {
    dir := os.TempDir()
    now := time.Now()
    _ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
        if err != nil || info == nil || info.IsDir() { return nil }
        name := info.Name()
        if !(strings.HasPrefix(name, "artdl-") || strings.HasPrefix(name, "s3art-")) {
            return nil
        }
        if now.Sub(info.ModTime()) >= maxAge {
            _ = os.Remove(path)
        }
        return nil
    })
}
