package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

const (
	ProviderName = "Gemini"
	DefaultModel = "gemini-2.5-flash"
)

type GeminiProvider struct {
	model      string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	tracer     trace.Tracer
}

type Option func(*GeminiProvider)

func WithModel(model string) Option {
	return func(g *GeminiProvider) {
		if model != "" {
			g.model = model
		}
	}
}

// WithBaseURL points the client at another Gemini API endpoint.
func WithBaseURL(u string) Option {
	return func(g *GeminiProvider) { g.baseURL = u }
}

func WithAPIVersion(v string) Option {
	return func(g *GeminiProvider) { g.apiVersion = v }
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *GeminiProvider) { g.httpClient = c }
}

func NewGeminiProvider(opts ...Option) *GeminiProvider {
	g := &GeminiProvider{
		model:  DefaultModel,
		tracer: otel.Tracer("github.com/muhammadumair29/multimodal-ai-chatbot/adapters/llm"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GeminiProvider) Model() string {
	return g.model
}

// StartChat implements domain.ChatProvider. The chat starts with an empty
// history; the returned session keeps it from then on.
func (g *GeminiProvider) StartChat(ctx context.Context, credential string) (domain.ChatSession, error) {
	ctx, span := g.tracer.Start(ctx, "llm.start_chat", trace.WithAttributes(attribute.String("model", g.model)))
	defer span.End()

	if strings.TrimSpace(credential) == "" {
		span.SetStatus(codes.Error, "missing credential")
		return nil, g.fail(domain.ReasonInit, domain.ErrMissingCredential)
	}

	cfg := &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    g.baseURL,
			APIVersion: g.apiVersion,
		},
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, g.fail(domain.ReasonInit, fmt.Errorf("creating genai client: %w", err))
	}

	chat, err := client.Chats.Create(ctx, g.model, nil, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, g.fail(domain.ReasonInit, fmt.Errorf("creating chat: %w", err))
	}

	log.WithCtx(ctx).Info("💬 Gemini chat session created", zap.String("model", g.model))
	return &GeminiChatSession{chat: chat, model: g.model, tracer: g.tracer}, nil
}

func (g *GeminiProvider) fail(reason domain.FailureReason, err error) error {
	return &domain.ProviderError{Provider: ProviderName, Reason: reason, Err: err}
}

type GeminiChatSession struct {
	chat   *genai.Chat
	model  string
	tracer trace.Tracer
}

// SendMessage implements domain.ChatSession. Attachments go first, then the
// text, all as parts of a single message.
func (s *GeminiChatSession) SendMessage(ctx context.Context, text string, attachments []*domain.Image) (string, error) {
	ctx, span := s.tracer.Start(ctx, "llm.send_message", trace.WithAttributes(
		attribute.String("model", s.model),
		attribute.Int("attachments", len(attachments)),
	))
	defer span.End()

	parts := make([]genai.Part, 0, len(attachments)+1)
	for _, img := range attachments {
		if img == nil {
			continue
		}
		parts = append(parts, genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}})
	}
	parts = append(parts, genai.Part{Text: text})

	resp, err := s.chat.SendMessage(ctx, parts...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", &domain.ProviderError{Provider: ProviderName, Reason: domain.ReasonSend, Err: err}
	}

	reply := resp.Text()
	if strings.TrimSpace(reply) == "" {
		span.SetStatus(codes.Error, "empty reply")
		return "", &domain.ProviderError{Provider: ProviderName, Reason: domain.ReasonEmptyReply, Err: errors.New("model returned no text")}
	}

	log.WithCtx(ctx).Debug("💬 Gemini replied", zap.Int("chars", len(reply)))
	return reply, nil
}
