package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/httpx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

// Message is one prior conversation turn sent to the model. Role is
// "user" or "assistant"; system instructions travel in the top-level
// system field, never in the message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the Anthropic Messages API adapter used by the rest of the
// backend. The model is treated as an opaque request/response (or
// streaming-chunk) service.
type Client interface {
	// Model reports the configured model id, recorded on persisted turns.
	Model() string

	// GenerateText performs a blocking completion and returns the full text.
	GenerateText(ctx context.Context, system string, msgs []Message) (string, error)

	// GenerateJSON performs a blocking completion and decodes the first JSON
	// value (object or array) found in the output into out.
	GenerateJSON(ctx context.Context, system string, msgs []Message, out any) error

	// StreamText streams text deltas through onDelta in generation order and
	// returns the full concatenated text once the stream finishes.
	StreamText(ctx context.Context, system string, msgs []Message, onDelta func(delta string)) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	version    string
	model      string
	maxTokens  int
	maxRetries int
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	version := strings.TrimSpace(os.Getenv("ANTHROPIC_VERSION"))
	if version == "" {
		version = "2023-06-01"
	}

	model := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL"))
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}

	maxTokens := 4096
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MAX_TOKENS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxTokens = parsed
		}
	}

	timeoutSec := 180
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 4
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "AnthropicClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		version:    version,
		model:      model,
		maxTokens:  maxTokens,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) Model() string { return c.model }

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicHTTPError struct {
	StatusCode int
	Body       string
}

func (e *anthropicHTTPError) Error() string {
	return fmt.Sprintf("anthropic http %d: %s", e.StatusCode, e.Body)
}

func (e *anthropicHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) GenerateText(ctx context.Context, system string, msgs []Message) (string, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    strings.TrimSpace(system),
		Messages:  msgs,
	}
	var out messagesResponse
	if err := c.do(ctx, "POST", "/v1/messages", reqBody, &out); err != nil {
		return "", err
	}
	return extractText(out), nil
}

func (c *client) GenerateJSON(ctx context.Context, system string, msgs []Message, out any) error {
	raw, err := c.GenerateText(ctx, system, msgs)
	if err != nil {
		return err
	}
	payload, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if uErr := json.Unmarshal([]byte(payload), out); uErr != nil {
		return fmt.Errorf("anthropic json decode: %w; raw=%s", uErr, truncateForLog(raw))
	}
	return nil
}

func (c *client) StreamText(ctx context.Context, system string, msgs []Message, onDelta func(delta string)) (string, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    strings.TrimSpace(system),
		Messages:  msgs,
		Stream:    true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", &buf)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return "", &anthropicHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	defer resp.Body.Close()

	var full strings.Builder
	err = streamSSE(resp.Body, func(event string, data string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if strings.TrimSpace(data) == "" {
			return nil
		}

		var obj struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
			Error *struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if uErr := json.Unmarshal([]byte(data), &obj); uErr != nil {
			return nil
		}

		evt := strings.TrimSpace(obj.Type)
		if evt == "" {
			evt = strings.TrimSpace(event)
		}

		switch evt {
		case "error":
			if obj.Error != nil {
				return fmt.Errorf("anthropic stream error (%s): %s", obj.Error.Type, obj.Error.Message)
			}
			return fmt.Errorf("anthropic stream error: %s", truncateForLog(data))
		case "content_block_delta":
			if obj.Delta.Type == "text_delta" && obj.Delta.Text != "" {
				full.WriteString(obj.Delta.Text)
				if onDelta != nil {
					onDelta(obj.Delta.Text)
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

func (c *client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)
	req.Header.Set("Content-Type", "application/json")
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &anthropicHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("anthropic decode error: %w; raw=%s", uErr, truncateForLog(string(raw)))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("anthropic request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func extractText(resp messagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// extractJSON pulls the first top-level JSON object or array out of model
// output, which may arrive wrapped in prose or fenced code blocks.
func extractJSON(raw string) (string, error) {
	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")

	start, opener, closer := -1, byte('{'), byte('}')
	switch {
	case arrStart >= 0 && (objStart < 0 || arrStart < objStart):
		start, opener, closer = arrStart, '[', ']'
	case objStart >= 0:
		start = objStart
	default:
		return "", fmt.Errorf("no JSON found in model output: %s", truncateForLog(raw))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON in model output: %s", truncateForLog(raw))
}

func truncateForLog(s string) string {
	const limit = 400
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
