package ai

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "mime/multipart"
    "net/http"
    "os"
)

type OpenAIClient struct {
    http    *http.Client
    apiKey  string
    baseURL string
}

func NewOpenAIClient() *OpenAIClient {
    base := os.Getenv("OPENAI_BASE_URL")
    if base == "" {
        base = "https://api.openai.com"
    }
    return &OpenAIClient{http: &http.Client{}, apiKey: os.Getenv("OPENAI_API_KEY"), baseURL: base}
}

func (c *OpenAIClient) Name() string { return "openai" }

type openAIMessage struct {
    Role    string `json:"role"`
    Content string `json:"content"`
}

type openAIChatReq struct {
    Model       string          `json:"model"`
    Messages    []openAIMessage `json:"messages"`
    Temperature float64         `json:"temperature"`
    MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIChatResp struct {
    Choices []struct {
        Message struct {
            Content string `json:"content"`
            Refusal string `json:"refusal"`
        } `json:"message"`
        FinishReason string `json:"finish_reason"`
    } `json:"choices"`
    Usage struct {
        PromptTokens     int `json:"prompt_tokens"`
        CompletionTokens int `json:"completion_tokens"`
    } `json:"usage"`
}

func (c *OpenAIClient) Do(ctx context.Context, req Request) (Response, error) {
    if c.apiKey == "" {
        return Response{}, errors.New("missing OPENAI_API_KEY")
    }

    var messages []openAIMessage
    if req.System != "" {
        messages = append(messages, openAIMessage{Role: "system", Content: req.System})
    }
    messages = append(messages, openAIMessage{Role: "user", Content: req.User})

    maxTokens := req.MaxTokens
    if maxTokens <= 0 {
        maxTokens = 4096
    }
    payload := openAIChatReq{
        Model:       req.Model,
        Messages:    messages,
        Temperature: 0.3,
        MaxTokens:   maxTokens,
    }

    body, _ := json.Marshal(payload)
    httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
    httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
    httpReq.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return Response{}, err
    }
    defer resp.Body.Close()

    if resp.StatusCode == 429 {
        return Response{}, ErrRateLimited
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return Response{}, fmt.Errorf("openai status %d", resp.StatusCode)
    }

    var r openAIChatResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
        return Response{}, err
    }
    if len(r.Choices) == 0 {
        return Response{}, errors.New("no choices")
    }
    choice := r.Choices[0]
    if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
        return Response{}, fmt.Errorf("%w: %s", ErrContentRefused, choice.Message.Refusal)
    }

    return Response{
        Text:      choice.Message.Content,
        TokensIn:  r.Usage.PromptTokens,
        TokensOut: r.Usage.CompletionTokens,
    }, nil
}

type openAITranscriptionResp struct {
    Text string `json:"text"`
}

// Transcribe sends an audio file to the transcription endpoint and returns
// the recognized text.
func (c *OpenAIClient) Transcribe(ctx context.Context, name string, data []byte) (string, error) {
    if c.apiKey == "" {
        return "", errors.New("missing OPENAI_API_KEY")
    }

    var buf bytes.Buffer
    mw := multipart.NewWriter(&buf)
    fw, err := mw.CreateFormFile("file", name)
    if err != nil {
        return "", err
    }
    if _, err := fw.Write(data); err != nil {
        return "", err
    }
    if err := mw.WriteField("model", "whisper-1"); err != nil {
        return "", err
    }
    if err := mw.Close(); err != nil {
        return "", err
    }

    httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &buf)
    httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
    httpReq.Header.Set("Content-Type", mw.FormDataContentType())

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return "", err
    }
    defer resp.Body.Close()

    if resp.StatusCode == 429 {
        return "", ErrRateLimited
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
        return "", fmt.Errorf("openai transcription status %d: %s", resp.StatusCode, msg)
    }

    var r openAITranscriptionResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
        return "", err
    }
    return r.Text, nil
}
