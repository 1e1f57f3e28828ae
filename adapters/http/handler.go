package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/usecase"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

const (
	// JWT settings
	JWTExpiry   = 24 * time.Hour
	tokenIssuer = "multimodal-ai-chatbot"

	// Rate limiting
	MaxRequestSize = 10 * 1024 * 1024 // 10MB
	MaxConcurrent  = 10

	sessionIDKey = "session_id"
)

type ChatHandler struct {
	store     *usecase.SessionStore
	jwtSecret []byte
	semaphore chan struct{}
	now       func() time.Time
}

type SessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
	Model     string    `json:"model"`
	ChatReady bool      `json:"chat_ready"`
	ChatError string    `json:"chat_error,omitempty"`
}

// MessageRequest is the JSON form of a turn. Image is base64 encoded.
type MessageRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Image []byte `json:"image,omitempty"`
}

type MessageView struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Caption   string    `json:"caption,omitempty"`
	Model     string    `json:"model,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	MIMEType  string    `json:"mime_type,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type TurnResponse struct {
	Route    string        `json:"route"`
	Messages []MessageView `json:"messages"`
}

type TranscriptResponse struct {
	SessionID string        `json:"session_id"`
	Model     string        `json:"model"`
	Messages  []MessageView `json:"messages"`
}

type ModelView struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Default bool   `json:"default"`
}

type WarningResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewChatHandler builds the REST surface. An empty secret is replaced by a
// random one, which invalidates issued tokens on restart.
func NewChatHandler(store *usecase.SessionStore, secret string, maxConcurrent int) *ChatHandler {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Errorf("generating jwt secret: %w", err))
		}
		log.With().Warn("⚠️ JWT_SECRET not set, using a random secret", zap.String("fingerprint", hex.EncodeToString(key[:4])))
	}
	if maxConcurrent <= 0 {
		maxConcurrent = MaxConcurrent
	}
	return &ChatHandler{
		store:     store,
		jwtSecret: key,
		semaphore: make(chan struct{}, maxConcurrent),
		now:       time.Now,
	}
}

// Register mounts the REST routes on g (normally /api/v1).
func (h *ChatHandler) Register(g *echo.Group) {
	g.GET("/health", h.HealthCheck)
	g.GET("/models", h.ListModels)
	g.POST("/sessions", h.CreateSession)

	g.POST("/sessions/:id/messages", h.PostMessage, h.JWTMiddleware, h.RateLimitMiddleware)
	g.GET("/sessions/:id/messages", h.ListMessages, h.JWTMiddleware)
	g.GET("/sessions/:id/messages/:seq/image", h.Image, h.JWTMiddleware)
	g.DELETE("/sessions/:id", h.EndSession, h.JWTMiddleware)
}

// IssueToken signs a token that grants access to sessionID only.
func (h *ChatHandler) IssueToken(sessionID string) (string, time.Time, error) {
	now := h.now()
	expires := now.Add(JWTExpiry)
	claims := &SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// JWTMiddleware accepts "Authorization: Bearer <token>" or a token query
// parameter, and requires the token's session to match :id.
func (h *ChatHandler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := c.QueryParam("token")
		if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
			}
		}
		if tokenString == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return h.jwtSecret, nil
		}, jwt.WithIssuer(tokenIssuer))
		if err != nil || !token.Valid {
			log.WithCtx(c.Request().Context()).Debug("JWT validation error", zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		if claims.SessionID == "" || claims.SessionID != c.Param("id") {
			return echo.NewHTTPError(http.StatusForbidden, "Token does not grant access to this session")
		}

		c.Set(sessionIDKey, claims.SessionID)
		ctx := log.ContextWithSession(c.Request().Context(), claims.SessionID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RateLimitMiddleware bounds the number of turns running at once.
func (h *ChatHandler) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		select {
		case h.semaphore <- struct{}{}:
			defer func() { <-h.semaphore }()
			return next(c)
		default:
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
		}
	}
}

// Health check endpoint
func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "multimodal-chat",
		"sessions":  h.store.Len(),
	})
}

func (h *ChatHandler) ListModels(c echo.Context) error {
	def := domain.DefaultImageModel().ID
	models := make([]ModelView, 0, len(domain.ImageModels))
	for _, m := range domain.ImageModels {
		models = append(models, ModelView{Name: m.Name, ID: m.ID, Default: m.ID == def})
	}
	return c.JSON(http.StatusOK, models)
}

func (h *ChatHandler) CreateSession(c echo.Context) error {
	sess := h.store.Start(c.Request().Context())

	token, expires, err := h.IssueToken(sess.ID)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("❌ Error signing JWT", zap.Error(err))
		_ = h.store.End(c.Request().Context(), sess.ID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	resp := CreateSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		Type:      "Bearer",
		ExpiresAt: expires.UTC(),
		Model:     sess.ModelID(),
		ChatReady: sess.ChatErr() == nil,
	}
	if err := sess.ChatErr(); err != nil {
		resp.ChatError = domain.DescribeFailure(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *ChatHandler) PostMessage(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	turn, err := h.bindTurn(c)
	if err != nil {
		return h.turnError(c, err)
	}

	result, err := h.store.Execute(ctx, sessionID, turn)
	if err != nil {
		return h.turnError(c, err)
	}

	return c.JSON(http.StatusOK, TurnResponse{
		Route:    result.Route.String(),
		Messages: h.views(sessionID, result.Appended),
	})
}

func (h *ChatHandler) bindTurn(c echo.Context) (usecase.Turn, error) {
	var (
		req  MessageRequest
		data []byte
	)

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		req.Text = c.FormValue("text")
		req.Model = c.FormValue("model")

		fh, err := c.FormFile("image")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return usecase.Turn{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid image upload")
		default:
			f, err := fh.Open()
			if err != nil {
				return usecase.Turn{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid image upload")
			}
			defer f.Close()
			if data, err = io.ReadAll(io.LimitReader(f, MaxRequestSize)); err != nil {
				return usecase.Turn{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid image upload")
			}
		}
	} else {
		if err := c.Bind(&req); err != nil {
			return usecase.Turn{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
		}
		data = req.Image
	}

	turn := usecase.Turn{Text: req.Text, ModelID: strings.TrimSpace(req.Model)}
	if len(data) > 0 {
		img, err := domain.NewImage(data)
		if err != nil {
			return usecase.Turn{}, domain.NewWarning(
				fmt.Errorf("%w: %w", domain.ErrUnsupportedAttachment, err),
				"The attached file is not a readable image.",
			)
		}
		turn.Attachment = img
	}
	return turn, nil
}

func (h *ChatHandler) turnError(c echo.Context, err error) error {
	var (
		warning *domain.Warning
		httpErr *echo.HTTPError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, domain.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	case errors.As(err, &warning):
		return h.warn(c, warning)
	default:
		log.WithCtx(c.Request().Context()).Error("❌ Turn failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process message")
	}
}

func (h *ChatHandler) warn(c echo.Context, w *domain.Warning) error {
	return c.JSON(http.StatusUnprocessableEntity, WarningResponse{Code: warningCode(w), Message: w.Message})
}

func warningCode(w *domain.Warning) string {
	switch {
	case errors.Is(w, domain.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(w, domain.ErrEmptyInput):
		return "empty_input"
	case errors.Is(w, domain.ErrEmptyPrompt):
		return "empty_prompt"
	case errors.Is(w, domain.ErrUnknownModel):
		return "unknown_model"
	case errors.Is(w, domain.ErrUnsupportedAttachment):
		return "unsupported_attachment"
	case errors.Is(w, domain.ErrChatUnavailable):
		return "chat_unavailable"
	default:
		return "invalid_request"
	}
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	sess, err := h.store.Get(c.Param("id"))
	if err != nil {
		return h.turnError(c, err)
	}
	return c.JSON(http.StatusOK, TranscriptResponse{
		SessionID: sess.ID,
		Model:     sess.ModelID(),
		Messages:  h.views(sess.ID, sess.Transcript.Messages()),
	})
}

// Image serves the payload of an image message. The digest is the ETag.
func (h *ChatHandler) Image(c echo.Context) error {
	sess, err := h.store.Get(c.Param("id"))
	if err != nil {
		return h.turnError(c, err)
	}
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid message sequence")
	}
	msg, ok := sess.Transcript.At(seq)
	if !ok || msg.Image == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	}

	res := c.Response()
	res.Header().Set("Cache-Control", "private, max-age=3600")
	if msg.Image.Digest != "" {
		etag := `"` + msg.Image.Digest + `"`
		res.Header().Set("ETag", etag)
		if c.Request().Header.Get("If-None-Match") == etag {
			return c.NoContent(http.StatusNotModified)
		}
	}
	return c.Blob(http.StatusOK, msg.Image.MIMEType, msg.Image.Data)
}

func (h *ChatHandler) EndSession(c echo.Context) error {
	if err := h.store.End(c.Request().Context(), c.Param("id")); err != nil {
		return h.turnError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ChatHandler) views(sessionID string, msgs []domain.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := MessageView{
			Seq:       m.Seq,
			Role:      string(m.Role),
			Kind:      string(m.Kind),
			Text:      m.Text(),
			Caption:   m.Caption,
			Model:     m.Model,
			CreatedAt: m.CreatedAt,
		}
		if m.Image != nil {
			v.ImageURL = fmt.Sprintf("/api/v1/sessions/%s/messages/%d/image", sessionID, m.Seq)
			v.MIMEType = m.Image.MIMEType
			v.Width = m.Image.Width
			v.Height = m.Image.Height
		}
		views = append(views, v)
	}
	return views
}
