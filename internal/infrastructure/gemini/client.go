package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"moneymind/internal/domain/chat"
	"moneymind/internal/shared/apperr"
	"moneymind/internal/shared/retry"
)

var (
	llmTracer          = otel.Tracer("moneymind/llm")
	llmMeter           = otel.Meter("moneymind/llm")
	llmCallDuration, _ = llmMeter.Float64Histogram("llm.call.duration",
		metric.WithDescription("Model call duration in seconds, retries included"),
		metric.WithUnit("s"),
	)
	llmCallTotal, _ = llmMeter.Int64Counter("llm.call.total",
		metric.WithDescription("Total model calls by outcome"),
	)
)

const (
	// MaxPromptBytes bounds the prompt before the context is appended.
	MaxPromptBytes = 16 * 1024

	// AttemptTimeout bounds a single model request.
	AttemptTimeout = 15 * time.Second

	maxOutputTokens = 2048
)

const systemInstruction = `You are Moneymind, a personal finance assistant.
Answer questions about budgeting, saving, spending, debt and investing clearly and concisely.
When the user's transaction data is provided, ground your answer in it and quote amounts in the stated currency.
Amounts in the data are integers in the currency's minor units (for example cents).
You do not give individualized legal or tax advice, and you say so when asked.
Politely decline questions unrelated to personal finance.`

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds the client's connection settings.
type Config struct {
	APIKey   string
	Model    string
	MaxConns int
}

// Client calls the Gemini API with the shared LLM retry policy.
type Client struct {
	models    contentGenerator
	model     string
	config    *genai.GenerateContentConfig
	policy    retry.Policy
	transport *http.Transport
	timeout   time.Duration
}

// New creates a client whose HTTP connection pool is bounded by cfg.MaxConns.
func New(ctx context.Context, cfg Config) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = cfg.MaxConns
	transport.MaxIdleConnsPerHost = cfg.MaxConns

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(transport)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	c := newClient(gc.Models, cfg.Model)
	c.transport = transport
	return c, nil
}

func newClient(models contentGenerator, model string) *Client {
	return &Client{
		models:  models,
		model:   model,
		config:  generationConfig(),
		policy:  retry.LLM.WithRetryable(retryable),
		timeout: AttemptTimeout,
	}
}

func generationConfig() *genai.GenerateContentConfig {
	threshold := genai.HarmBlockThresholdBlockMediumAndAbove
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
		TopP:              genai.Ptr[float32](1),
		TopK:              genai.Ptr[float32](1),
		MaxOutputTokens:   maxOutputTokens,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: threshold},
			{Category: genai.HarmCategoryHateSpeech, Threshold: threshold},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: threshold},
			{Category: genai.HarmCategoryDangerousContent, Threshold: threshold},
		},
	}
}

// Close drains idle upstream connections.
func (c *Client) Close() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// Generate answers prompt, appending data as compact JSON when it is non-nil.
func (c *Client) Generate(ctx context.Context, prompt string, data any) (string, error) {
	if len(prompt) > MaxPromptBytes {
		return "", apperr.Validation("prompt must be at most %d bytes", MaxPromptBytes)
	}

	text := prompt
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("failed to encode model context: %w", err)
		}
		text = prompt + "\n\nContext (JSON):\n" + string(b)
	}

	return c.call(ctx, "generate", []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)})
}

// Converse replays history before prompt.
func (c *Client) Converse(ctx context.Context, history []chat.Message, prompt string) (string, error) {
	if len(prompt) > MaxPromptBytes {
		return "", apperr.Validation("prompt must be at most %d bytes", MaxPromptBytes)
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == chat.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text(), role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	return c.call(ctx, "converse", contents)
}

func (c *Client) call(ctx context.Context, op string, contents []*genai.Content) (string, error) {
	ctx, span := llmTracer.Start(ctx, "llm."+op, trace.WithAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.contents", len(contents)),
	))
	defer span.End()

	start := time.Now()
	var text string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.models.GenerateContent(attemptCtx, c.model, contents, c.config)
		if err != nil {
			return err
		}
		text, err = responseText(resp)
		return err
	})
	err = classify(ctx, err)

	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.operation", op),
		attribute.String("outcome", outcome),
	)
	llmCallDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	llmCallTotal.Add(ctx, 1, attrs)

	if err != nil {
		return "", err
	}
	return text, nil
}

// responseText extracts the reply. Blocked or empty candidates are refusals.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", apperr.Rejected(apperr.UpstreamLLM, "model returned no response", nil)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", apperr.Rejected(apperr.UpstreamLLM, "model blocked the prompt",
			fmt.Errorf("block reason %s", fb.BlockReason))
	}
	text := resp.Text()
	if text == "" {
		var reason genai.FinishReason
		if len(resp.Candidates) > 0 {
			reason = resp.Candidates[0].FinishReason
		}
		return "", apperr.Rejected(apperr.UpstreamLLM, "model returned an empty reply",
			fmt.Errorf("finish reason %q", reason))
	}
	return text, nil
}

func apiError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

// retryable reports whether an attempt failed for a reason that may clear up:
// rate limiting, server errors, attempt timeouts and network failures.
func retryable(err error) bool {
	if _, ok := apperr.As(err); ok {
		return false
	}
	if e, ok := apiError(err); ok {
		return e.Code == http.StatusTooManyRequests || e.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify converts the final attempt's error into an apperr kind.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("llm: %w", cerr)
	}
	if e, ok := apiError(err); ok && e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests {
		return apperr.Rejected(apperr.UpstreamLLM, "model rejected the request", err)
	}
	return apperr.Unavailable(apperr.UpstreamLLM, err)
}
