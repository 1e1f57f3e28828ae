package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

// Credentials are the provider keys available to every session.
type Credentials struct {
	ImageToken string
	ChatKey    string
}

// Session is the per-session context: its transcript, its remote chat handle
// and the image model selected for it.
type Session struct {
	ID        string
	CreatedAt time.Time

	Transcript *domain.Transcript

	// mu is held for the whole of a turn.
	mu      sync.Mutex
	chat    domain.ChatSession
	chatErr error
	modelID string

	lastActive atomic.Int64
}

// ModelID returns the image model currently selected for the session.
func (s *Session) ModelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelID
}

// ChatErr reports why the conversation could not be opened, if it could not.
func (s *Session) ChatErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatErr
}

// LastActive is the start time of the latest turn. It does not wait for a
// running turn.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load()).UTC()
}

func (s *Session) touch(t time.Time) {
	s.lastActive.Store(t.UnixNano())
}

// Turn is one user submission.
type Turn struct {
	Text       string
	Attachment *domain.Image
	// ModelID overrides the session's image model when set. The override
	// sticks only if the turn is accepted.
	ModelID string
}

// TurnResult lists what a turn appended, in transcript order.
type TurnResult struct {
	Route    Route
	Appended []domain.Message
}

// Reply returns the last assistant message the turn appended.
func (r TurnResult) Reply() (domain.Message, bool) {
	for i := len(r.Appended) - 1; i >= 0; i-- {
		if r.Appended[i].Role == domain.AssistantRole {
			return r.Appended[i], true
		}
	}
	return domain.Message{}, false
}

type ChatService struct {
	images       domain.ImageGenerator
	chats        domain.ChatProvider
	hasher       domain.Hasher
	broker       domain.MessageBroker
	creds        Credentials
	defaultModel string
	tracer       trace.Tracer
	now          func() time.Time
}

type ChatServiceOption func(*ChatService)

// WithBroker publishes a TranscriptEvent for every appended message.
func WithBroker(b domain.MessageBroker) ChatServiceOption {
	return func(s *ChatService) { s.broker = b }
}

func WithDefaultModel(modelID string) ChatServiceOption {
	return func(s *ChatService) {
		if modelID != "" {
			s.defaultModel = modelID
		}
	}
}

func WithClock(now func() time.Time) ChatServiceOption {
	return func(s *ChatService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewChatService(images domain.ImageGenerator, chats domain.ChatProvider, hasher domain.Hasher, creds Credentials, opts ...ChatServiceOption) *ChatService {
	s := &ChatService{
		images:       images,
		chats:        chats,
		hasher:       hasher,
		creds:        creds,
		defaultModel: domain.DefaultImageModel().ID,
		tracer:       otel.Tracer("github.com/muhammadumair29/multimodal-ai-chatbot/usecase"),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession creates a session with an empty transcript and opens its
// conversation. A failed open is kept on the session; image turns still work.
func (s *ChatService) StartSession(ctx context.Context, id string) *Session {
	now := s.now()
	sess := &Session{
		ID:         id,
		CreatedAt:  now,
		Transcript: domain.NewTranscript(),
		modelID:    s.defaultModel,
	}
	sess.touch(now)

	ctx = log.ContextWithSession(ctx, id)
	switch {
	case s.creds.ChatKey == "":
		sess.chatErr = domain.ErrMissingCredential
	case s.chats == nil:
		sess.chatErr = domain.ErrChatUnavailable
	default:
		chat, err := s.chats.StartChat(ctx, s.creds.ChatKey)
		if err != nil {
			log.WithCtx(ctx).Error("❌ Failed to initialize chat session", zap.Error(err))
			sess.chatErr = err
		} else {
			sess.chat = chat
		}
	}

	log.WithCtx(ctx).Info("🆕 Session started", zap.Bool("chat_ready", sess.chat != nil))
	return sess
}

// Execute runs one turn on sess. Turns on the same session are serialized.
//
// A *domain.Warning means the turn was rejected up front: nothing was
// appended and no provider was contacted. Provider failures never surface
// as errors; they are appended as notice messages instead.
func (s *ChatService) Execute(ctx context.Context, sess *Session, turn Turn) (TurnResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	ctx = log.ContextWithSession(ctx, sess.ID)
	ctx, span := s.tracer.Start(ctx, "dispatcher.turn", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
	))
	defer span.End()

	sess.touch(s.now())

	if strings.TrimSpace(turn.Text) == "" {
		span.SetStatus(codes.Error, "empty input")
		return TurnResult{}, domain.NewWarning(domain.ErrEmptyInput, "Please enter a message.")
	}

	modelID := sess.modelID
	if turn.ModelID != "" {
		model, ok := domain.LookupImageModel(turn.ModelID)
		if !ok {
			span.SetStatus(codes.Error, "unknown model")
			return TurnResult{}, domain.NewWarning(
				fmt.Errorf("%w: %s", domain.ErrUnknownModel, turn.ModelID),
				fmt.Sprintf("Unknown image model %q.", turn.ModelID),
			)
		}
		modelID = model.ID
	}

	class := Classify(turn.Text)
	span.SetAttributes(attribute.String("route", class.Route.String()))

	var (
		result TurnResult
		err    error
	)
	if class.Route == RouteImage {
		result, err = s.imageTurn(ctx, sess, turn, class.Prompt, modelID)
	} else {
		result, err = s.conversationTurn(ctx, sess, turn)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.WithCtx(ctx).Warn("⚠️ Turn rejected", zap.String("route", class.Route.String()), zap.Error(err))
		return TurnResult{}, err
	}

	sess.modelID = modelID
	result.Route = class.Route
	return result, nil
}

func (s *ChatService) imageTurn(ctx context.Context, sess *Session, turn Turn, prompt, modelID string) (TurnResult, error) {
	if prompt == "" {
		return TurnResult{}, domain.NewWarning(domain.ErrEmptyPrompt, "Please describe the image you want after the trigger phrase.")
	}
	if s.creds.ImageToken == "" {
		return TurnResult{}, domain.NewWarning(domain.ErrMissingCredential, "Please enter your Hugging Face API token to generate images.")
	}
	if turn.Attachment != nil {
		log.WithCtx(ctx).Debug("Ignoring attachment on image request")
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("model.id", modelID))

	var result TurnResult
	result.Appended = append(result.Appended, s.append(ctx, sess, domain.Message{
		Role:    domain.UserRole,
		Kind:    domain.TextKind,
		Content: turn.Text,
	}))

	img, err := s.images.Generate(ctx, prompt, s.creds.ImageToken, modelID)
	if err != nil || img == nil {
		if err == nil {
			err = &domain.GenerationError{Model: modelID, Reason: domain.ReasonExhausted, Err: errors.New("no image returned")}
		}
		log.WithCtx(ctx).Error("❌ Image generation failed", zap.Error(err))
		result.Appended = append(result.Appended, s.append(ctx, sess, domain.Message{
			Role:    domain.AssistantRole,
			Kind:    domain.NoticeKind,
			Model:   modelID,
			Failure: err,
		}))
		return result, nil
	}

	if s.hasher != nil && img.Digest == "" {
		img.Digest = s.hasher.Hash(img.Data)
	}
	result.Appended = append(result.Appended, s.append(ctx, sess, domain.Message{
		Role:    domain.AssistantRole,
		Kind:    domain.ImageKind,
		Image:   img,
		Caption: prompt,
		Model:   modelID,
	}))
	log.WithCtx(ctx).Info("🖼️ Image generated", zap.String("mime", img.MIMEType), zap.Int("bytes", len(img.Data)))
	return result, nil
}

func (s *ChatService) conversationTurn(ctx context.Context, sess *Session, turn Turn) (TurnResult, error) {
	if s.creds.ChatKey == "" {
		return TurnResult{}, domain.NewWarning(domain.ErrMissingCredential, "Please enter your Gemini API key to chat.")
	}
	if sess.chat == nil {
		cause := sess.chatErr
		if cause == nil {
			cause = domain.ErrChatUnavailable
		}
		return TurnResult{}, domain.NewWarning(
			fmt.Errorf("%w: %w", domain.ErrChatUnavailable, cause),
			"The conversation is unavailable for this session. Start a new session to retry.",
		)
	}
	if turn.Attachment != nil && !turn.Attachment.IsAttachable() {
		return TurnResult{}, domain.NewWarning(
			fmt.Errorf("%w: %s", domain.ErrUnsupportedAttachment, turn.Attachment.MIMEType),
			"Only PNG and JPEG images can be attached.",
		)
	}

	var result TurnResult
	result.Appended = append(result.Appended, s.append(ctx, sess, domain.Message{
		Role:    domain.UserRole,
		Kind:    domain.TextKind,
		Content: turn.Text,
	}))

	var attachments []*domain.Image
	if turn.Attachment != nil {
		if s.hasher != nil && turn.Attachment.Digest == "" {
			turn.Attachment.Digest = s.hasher.Hash(turn.Attachment.Data)
		}
		attachments = append(attachments, turn.Attachment)
		result.Appended = append(result.Appended, s.append(ctx, sess, domain.Message{
			Role:    domain.UserRole,
			Kind:    domain.ImageKind,
			Image:   turn.Attachment,
			Caption: domain.UploadCaption,
		}))
	}

	reply, err := sess.chat.SendMessage(ctx, turn.Text, attachments)
	if err != nil {
		log.WithCtx(ctx).Error("❌ Chat send failed", zap.Error(err))
		result.Appended = append(result.Appended, s.append(ctx, sess, domain.Message{
			Role:    domain.AssistantRole,
			Kind:    domain.NoticeKind,
			Failure: err,
		}))
		return result, nil
	}

	result.Appended = append(result.Appended, s.append(ctx, sess, domain.Message{
		Role:    domain.AssistantRole,
		Kind:    domain.TextKind,
		Content: reply,
	}))
	return result, nil
}

func (s *ChatService) append(ctx context.Context, sess *Session, msg domain.Message) domain.Message {
	msg.CreatedAt = s.now()
	msg = sess.Transcript.Append(msg)
	s.publish(ctx, domain.NewMessageEvent(sess.ID, msg))
	return msg
}

// EndSession announces that sess is gone. The caller drops its references.
func (s *ChatService) EndSession(ctx context.Context, sess *Session) {
	s.publish(ctx, domain.TranscriptEvent{
		Type:      domain.SessionEnded,
		SessionID: sess.ID,
		Seq:       sess.Transcript.Len(),
		Timestamp: s.now(),
	})
	log.WithCtx(log.ContextWithSession(ctx, sess.ID)).Info("👋 Session ended")
}

func (s *ChatService) publish(ctx context.Context, ev domain.TranscriptEvent) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.WithCtx(ctx).Error("❌ Failed to marshal transcript event", zap.Error(err))
		return
	}
	if err := s.broker.Publish(ctx, domain.TranscriptTopic, ev.SessionID, payload); err != nil {
		log.WithCtx(ctx).Warn("Failed to publish transcript event", zap.Error(err))
	}
}
