package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

const (
	DefaultBaseURL      = "https://router.huggingface.co/hf-inference/models"
	DefaultAttempts     = 3
	DefaultMaxRedirects = 3

	defaultColdStartWait = 20 * time.Second
	coldStartPadding     = 5 * time.Second
	maxColdStartWait     = 60 * time.Second
	errorBackoff         = 5 * time.Second

	maxResponseBytes = 20 << 20
	maxErrorText     = 512
)

// Sleeper blocks for d. It is not interrupted by context cancellation.
type Sleeper func(d time.Duration)

// HuggingFace generates images through the Hugging Face inference router.
type HuggingFace struct {
	httpClient   *http.Client
	baseURL      string
	attempts     int
	maxRedirects int
	sleep        Sleeper
	tracer       trace.Tracer
}

type Option func(*HuggingFace)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HuggingFace) {
		if c != nil {
			h.httpClient = c
		}
	}
}

func WithBaseURL(u string) Option {
	return func(h *HuggingFace) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			h.baseURL = u
		}
	}
}

// WithAttempts sets the attempt budget. Values below 1 are ignored.
func WithAttempts(n int) Option {
	return func(h *HuggingFace) {
		if n > 0 {
			h.attempts = n
		}
	}
}

// WithMaxRedirects bounds the 410 retries that do not consume an attempt.
func WithMaxRedirects(n int) Option {
	return func(h *HuggingFace) {
		if n >= 0 {
			h.maxRedirects = n
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(h *HuggingFace) {
		if s != nil {
			h.sleep = s
		}
	}
}

func NewHuggingFace(opts ...Option) *HuggingFace {
	h := &HuggingFace{
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		baseURL:      DefaultBaseURL,
		attempts:     DefaultAttempts,
		maxRedirects: DefaultMaxRedirects,
		sleep:        time.Sleep,
		tracer:       otel.Tracer("github.com/muhammadumair29/multimodal-ai-chatbot/adapters/imagegen"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HuggingFace) modelURL(modelID string) string {
	return h.baseURL + "/" + strings.TrimLeft(modelID, "/")
}

type response struct {
	status int
	body   []byte
}

// Generate implements domain.ImageGenerator.
//
// Every attempt is one synchronous POST. A 410 rebuilds the endpoint URL and
// retries at once without consuming an attempt, up to maxRedirects times.
// No wait happens after the last attempt.
func (h *HuggingFace) Generate(ctx context.Context, prompt, credential, modelID string) (*domain.Image, error) {
	ctx, span := h.tracer.Start(ctx, "imagegen.generate", trace.WithAttributes(
		attribute.String("model.id", modelID),
	))
	defer span.End()

	logger := log.WithCtx(ctx).With(zap.String("model", modelID))
	url := h.modelURL(modelID)
	redirects := 0
	var lastErr error

	for attempt := 1; attempt <= h.attempts; {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "canceled")
			return nil, &domain.GenerationError{Model: modelID, Attempts: attempt - 1, Reason: domain.ReasonCanceled, Err: err}
		}

		logger.Info("🎨 Generating image", zap.Int("attempt", attempt), zap.Int("of", h.attempts))
		resp, err := h.query(ctx, url, credential, prompt)
		if err != nil {
			lastErr = err
			logger.Error("❌ API request failed", zap.Error(err))
			attempt++
			continue
		}

		switch resp.status {
		case http.StatusGone:
			lastErr = fmt.Errorf("endpoint gone: %s", url)
			if redirects < h.maxRedirects {
				redirects++
				logger.Warn("🔁 Deprecated endpoint, retrying through the router", zap.Int("redirect", redirects))
				url = h.modelURL(modelID)
				continue
			}
			logger.Error("❌ Endpoint gone and redirect budget spent")
			attempt++

		case http.StatusOK:
			img, err := domain.NewImage(resp.body)
			if err == nil {
				span.SetAttributes(attribute.Int("attempts", attempt), attribute.String("image.mime", img.MIMEType))
				return img, nil
			}
			lastErr = err
			logger.Error("❌ Error processing image", zap.Error(err))
			attempt++

		case http.StatusServiceUnavailable:
			wait := coldStartWait(resp.body)
			lastErr = fmt.Errorf("model is loading (status %d)", resp.status)
			logger.Warn("⏳ Model is loading", zap.Duration("wait", wait))
			h.pause(attempt, wait)
			attempt++

		default:
			msg := providerError(resp.body)
			lastErr = fmt.Errorf("status %d: %s", resp.status, msg)
			logger.Error("❌ Provider returned an error", zap.Int("status", resp.status), zap.String("error", msg))
			h.pause(attempt, errorBackoff)
			attempt++
		}
	}

	logger.Error("❌ Failed to generate image after all retries", zap.Error(lastErr))
	span.SetStatus(codes.Error, "exhausted")
	return nil, &domain.GenerationError{Model: modelID, Attempts: h.attempts, Reason: domain.ReasonExhausted, Err: lastErr}
}

// pause waits before the next attempt; there is none after the last one.
func (h *HuggingFace) pause(attempt int, d time.Duration) {
	if attempt >= h.attempts || d <= 0 {
		return
	}
	h.sleep(d)
}

func (h *HuggingFace) query(ctx context.Context, url, credential, prompt string) (response, error) {
	payload, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return response{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// coldStartWait reads the provider's estimated_time (seconds), pads it and
// caps the result.
func coldStartWait(body []byte) time.Duration {
	est := gjson.GetBytes(body, "estimated_time")
	if est.Type != gjson.Number {
		return defaultColdStartWait
	}
	secs := est.Float()
	if secs < 0 {
		secs = 0
	}
	if secs+coldStartPadding.Seconds() >= maxColdStartWait.Seconds() {
		return maxColdStartWait
	}
	return time.Duration(secs*float64(time.Second)) + coldStartPadding
}

func providerError(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error").String(); msg != "" {
			return msg
		}
		return "Unknown error"
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorText {
		cut := maxErrorText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
