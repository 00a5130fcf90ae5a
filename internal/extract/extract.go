package extract

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/gabriel-vasile/mimetype"
    "github.com/rs/zerolog/log"
)

// MediaKind classifies an input artifact for extraction.
type MediaKind string

const (
    MediaText  MediaKind = "text"
    MediaPDF   MediaKind = "pdf"
    MediaAudio MediaKind = "audio"
)

// Transcriber converts recorded audio to text.
type Transcriber interface {
    Transcribe(ctx context.Context, name string, data []byte) (string, error)
}

// Service turns an uploaded or referenced artifact into plain text.
type Service struct {
    transcriber Transcriber
}

func NewService(transcriber Transcriber) *Service {
    return &Service{transcriber: transcriber}
}

// Text resolves the ref to a local file, detects its media type by magic
// bytes and extracts plain text from it.
func (s *Service) Text(ctx context.Context, ref string) (string, error) {
    localPath, tmp, err := EnsureLocal(ctx, ref)
    if err != nil {
        return "", err
    }
    if tmp != "" {
        defer os.Remove(tmp)
    }

    kind, err := detectKind(localPath)
    if err != nil {
        return "", err
    }

    switch kind {
    case MediaText:
        data, err := os.ReadFile(localPath)
        if err != nil {
            return "", fmt.Errorf("read text file: %w", err)
        }
        return string(data), nil
    case MediaPDF:
        return pdfText(localPath)
    case MediaAudio:
        if s.transcriber == nil {
            return "", fmt.Errorf("audio input not supported: no transcriber configured")
        }
        data, err := os.ReadFile(localPath)
        if err != nil {
            return "", fmt.Errorf("read audio file: %w", err)
        }
        return s.transcriber.Transcribe(ctx, filepath.Base(localPath), data)
    }
    return "", fmt.Errorf("unreachable media kind %q", kind)
}

// detectKind detects the artifact kind from magic bytes, not filename.
func detectKind(path string) (MediaKind, error) {
    mtype, err := mimetype.DetectFile(path)
    if err != nil {
        return "", fmt.Errorf("detect file type: %w", err)
    }
    mime := mtype.String()
    log.Debug().Str("mime", mime).Str("ext", mtype.Extension()).Str("file", path).Msg("detected file type")

    switch {
    case strings.HasPrefix(mime, "text/"),
        mime == "application/json",
        mime == "application/xml":
        return MediaText, nil
    case mime == "application/pdf":
        return MediaPDF, nil
    case strings.HasPrefix(mime, "audio/"),
        mime == "video/mp4",
        mime == "application/ogg":
        return MediaAudio, nil
    }
    return "", fmt.Errorf("unsupported media type: %s", mime)
}
