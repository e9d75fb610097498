package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
	"github.com/designos/designos-backend/internal/utils"
)

// DefaultMaxOutputTokens bounds a single generation call.
const DefaultMaxOutputTokens = 64000

const (
	StopReasonEnd       = "end"
	StopReasonMaxTokens = "max_tokens"
)

type GenerateRequest struct {
	Model     string
	System    string
	User      string
	MaxTokens int
}

type GenerateResult struct {
	Content      string
	Model        string
	StopReason   string // end|max_tokens
	InputTokens  int
	OutputTokens int
}

// ProviderClient is one configured AI provider. Implementations are
// stateless per call and safe for concurrent use.
type ProviderClient interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// NewProviderClient builds a client from a stored provider config. The API
// key is decrypted here so callers never hold plaintext keys.
func NewProviderClient(cfg *types.AIProviderConfig, log *logger.Logger) (ProviderClient, error) {
	apiKey, err := utils.Decrypt(cfg.APIKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt provider key: %w", err)
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	switch cfg.Provider {
	case types.ProviderAnthropic:
		if base == "" {
			base = "https://api.anthropic.com"
		}
		return &anthropicClient{
			log:     log.With("service", "AnthropicClient"),
			baseURL: base,
			apiKey:  apiKey,
			httpClient: &http.Client{
				Timeout: time.Duration(utils.GetEnvAsInt("AI_TIMEOUT_SECONDS", 300, log)) * time.Second,
			},
			maxRetries: utils.GetEnvAsInt("AI_MAX_RETRIES", 3, log),
		}, nil
	case types.ProviderOpenAI, types.ProviderOpenRouter, types.ProviderDeepSeek, types.ProviderKimi, types.ProviderCustom:
		if base == "" {
			switch cfg.Provider {
			case types.ProviderOpenAI:
				base = "https://api.openai.com"
			case types.ProviderOpenRouter:
				base = "https://openrouter.ai/api"
			case types.ProviderDeepSeek:
				base = "https://api.deepseek.com"
			case types.ProviderKimi:
				base = "https://api.moonshot.ai"
			default:
				return nil, fmt.Errorf("custom provider requires a base url")
			}
		}
		return &openAICompatClient{
			log:     log.With("service", "OpenAICompatClient", "provider", cfg.Provider),
			baseURL: base,
			apiKey:  apiKey,
			httpClient: &http.Client{
				Timeout: time.Duration(utils.GetEnvAsInt("AI_TIMEOUT_SECONDS", 300, log)) * time.Second,
			},
			maxRetries: utils.GetEnvAsInt("AI_MAX_RETRIES", 3, log),
		}, nil
	default:
		return nil, apierr.NoProvider("unsupported provider %q", cfg.Provider)
	}
}

type providerHTTPError struct {
	StatusCode int
	Body       string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

func doJSON(ctx context.Context, client *http.Client, req *http.Request) ([]byte, *http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp, &providerHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp, nil
}

// callWithRetry posts body to url with headers and retries transient
// failures with capped exponential backoff, honoring Retry-After.
func callWithRetry(ctx context.Context, log *logger.Logger, client *http.Client, maxRetries int, url string, headers map[string]string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		raw, resp, err := doJSON(ctx, client, req)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("provider decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !isRetryableErr(err) || attempt == maxRetries {
			return err
		}

		sleepFor := backoff
		if resp != nil {
			ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
			if ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		log.Warn("Provider request retrying",
			"url", url,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// ---- Anthropic messages API ----

type anthropicClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *anthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.User}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}
	var resp anthropicResponse
	if err := callWithRetry(ctx, c.log, c.httpClient, c.maxRetries, c.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	stop := StopReasonEnd
	if resp.StopReason == "max_tokens" {
		stop = StopReasonMaxTokens
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &GenerateResult{
		Content:      text.String(),
		Model:        model,
		StopReason:   stop,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// ---- OpenAI-compatible chat completions ----
//
// Covers OpenAI itself plus OpenRouter, DeepSeek, Kimi, and custom
// endpoints that speak the same wire format.

type openAICompatClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *openAICompatClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	body := chatCompletionRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
	var resp chatCompletionResponse
	if err := callWithRetry(ctx, c.log, c.httpClient, c.maxRetries, c.baseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	choice := resp.Choices[0]
	stop := StopReasonEnd
	if choice.FinishReason == "length" {
		stop = StopReasonMaxTokens
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &GenerateResult{
		Content:      choice.Message.Content,
		Model:        model,
		StopReason:   stop,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
