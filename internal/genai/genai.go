// Package genai provides a thin OpenAI-compatible completion client used to
// generate customer replies. It targets OpenRouter by default.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Defaults for the completion request.
const (
	DefaultModel            = "deepseek/deepseek-chat-v3-0324:free"
	DefaultBaseURL          = "https://openrouter.ai/api/v1"
	DefaultReferer          = "https://zapatillasdolores.com"
	DefaultTitle            = "Bot WhatsApp Zapatillas Dolores"
	DefaultTimeout          = 30 * time.Second
	DefaultMaxTokens        = 500
	DefaultTemperature      = 0.7
	DefaultTopP             = 0.9
	DefaultFrequencyPenalty = 0.1
	DefaultPresencePenalty  = 0.1
)

// Failure reasons reported in Result.Reason.
const (
	ReasonNotConfigured = "not_configured"
	ReasonTransport     = "transport_error"
	ReasonStatus        = "http_status"
	ReasonMalformed     = "malformed_response"
	ReasonNoChoices     = "no_choices"
	ReasonEmpty         = "empty_completion"
)

var (
	ErrNotConfigured     = errors.New("completion API key not configured")
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyCompletion   = errors.New("completion text is empty")
)

// Result is the outcome of a single completion call: either OK with Text, or a
// failure with Reason and Err.
type Result struct {
	OK         bool
	Text       string
	Reason     string
	StatusCode int
	Err        error
}

func success(text string) Result {
	return Result{OK: true, Text: text}
}

func failure(reason string, status int, err error) Result {
	return Result{Reason: reason, StatusCode: status, Err: err}
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionService adapts the SDK completion service to chatService.
type completionService struct {
	svc *openai.ChatCompletionService
}

// Create rejects any status other than 200; the SDK alone accepts every 2xx.
func (c completionService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	var httpResp *http.Response
	resp, err := c.svc.New(ctx, params, option.WithResponseInto(&httpResp))
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	if httpResp != nil && httpResp.StatusCode != http.StatusOK {
		return openai.ChatCompletion{}, &StatusError{StatusCode: httpResp.StatusCode}
	}
	return *resp, nil
}

// StatusError reports a completion reply whose status was not 200.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected completion status %d", e.StatusCode)
}

// Opts holds configuration for the client.
type Opts struct {
	APIKey     string
	Model      string
	BaseURL    string
	Referer    string
	Title      string
	Timeout    time.Duration
	MaxTokens  int64
	HTTPClient *http.Client
	DebugMode  bool
	StateDir   string
}

// Option configures the client.
type Option func(*Opts)

func WithAPIKey(key string) Option { return func(o *Opts) { o.APIKey = key } }

func WithModel(model string) Option { return func(o *Opts) { o.Model = model } }

func WithBaseURL(url string) Option { return func(o *Opts) { o.BaseURL = url } }

// WithReferer sets the HTTP-Referer attribution header.
func WithReferer(referer string) Option { return func(o *Opts) { o.Referer = referer } }

// WithTitle sets the X-Title attribution header.
func WithTitle(title string) Option { return func(o *Opts) { o.Title = title } }

func WithTimeout(d time.Duration) Option { return func(o *Opts) { o.Timeout = d } }

func WithMaxTokens(n int64) Option { return func(o *Opts) { o.MaxTokens = n } }

func WithHTTPClient(c *http.Client) Option { return func(o *Opts) { o.HTTPClient = c } }

// WithDebugMode writes every request and response under StateDir/debug.
func WithDebugMode(enabled bool) Option { return func(o *Opts) { o.DebugMode = enabled } }

func WithStateDir(dir string) Option { return func(o *Opts) { o.StateDir = dir } }

// Client wraps the chat completion service.
type Client struct {
	chat        chatService
	apiKey      string
	model       string
	temperature float64
	maxTokens   int64
	debugMode   bool
	stateDir    string
}

// NewClient builds a client. A missing API key is not an error: the client
// reports Configured() == false and Complete fails fast without network access.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:     DefaultModel,
		BaseURL:   DefaultBaseURL,
		Referer:   DefaultReferer,
		Title:     DefaultTitle,
		Timeout:   DefaultTimeout,
		MaxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %s", cfg.Timeout)
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("invalid max tokens %d", cfg.MaxTokens)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.Referer != "" {
		reqOpts = append(reqOpts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Title", cfg.Title))
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "base_url", cfg.BaseURL, "configured", cfg.APIKey != "")
	return &Client{
		chat:        completionService{svc: &cli.Chat.Completions},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: DefaultTemperature,
		maxTokens:   cfg.MaxTokens,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.apiKey) != ""
}

// Model returns the model identifier sent with each request.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the trimmed text
// of the first choice. It makes exactly one attempt.
func (c *Client) Complete(ctx context.Context, prompt string) Result {
	if !c.Configured() {
		return failure(ReasonNotConfigured, 0, ErrNotConfigured)
	}

	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(c.model),
		Messages:         []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens:        openai.Int(c.maxTokens),
		Temperature:      openai.Float(c.temperature),
		TopP:             openai.Float(DefaultTopP),
		FrequencyPenalty: openai.Float(DefaultFrequencyPenalty),
		PresencePenalty:  openai.Float(DefaultPresencePenalty),
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	c.debugLog("Complete", prompt, resp, err)
	if err != nil {
		res := classifyError(err)
		slog.Warn("genai.Complete: request failed", "reason", res.Reason, "status", res.StatusCode, "error", err, "elapsed", time.Since(start))
		return res
	}
	if len(resp.Choices) == 0 {
		slog.Warn("genai.Complete: no choices returned", "model", c.model)
		return failure(ReasonNoChoices, http.StatusOK, ErrNoChoicesReturned)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		slog.Warn("genai.Complete: empty completion", "model", c.model)
		return failure(ReasonEmpty, http.StatusOK, ErrEmptyCompletion)
	}
	slog.Debug("genai.Complete: success", "model", c.model, "chars", len(text), "elapsed", time.Since(start))
	return success(text)
}

// classifyError maps an SDK error to a failed Result.
func classifyError(err error) Result {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return failure(ReasonStatus, apiErr.StatusCode, err)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return failure(ReasonStatus, statusErr.StatusCode, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return failure(ReasonMalformed, http.StatusOK, err)
	}
	return failure(ReasonTransport, 0, err)
}

// debugLog writes one JSON file per call when debug mode is enabled.
func (c *Client) debugLog(method, prompt string, resp openai.ChatCompletion, callErr error) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	debugDir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		slog.Warn("genai.debugLog: failed to create debug dir", "dir", debugDir, "error", err)
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"method":    method,
		"model":     c.model,
		"prompt":    prompt,
		"response":  resp,
	}
	if callErr != nil {
		entry["error"] = callErr.Error()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.debugLog: marshal failed", "error", err)
		return
	}
	name := fmt.Sprintf("genai_%s_%d.json", method, time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(debugDir, name), data, 0644); err != nil {
		slog.Warn("genai.debugLog: write failed", "error", err)
	}
}
