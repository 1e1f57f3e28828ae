package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/hasher"
	httpadapter "github.com/muhammadumair29/multimodal-ai-chatbot/adapters/http"
	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/imagegen"
	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/llm"
	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/message_broker"
	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/websocket"
	"github.com/muhammadumair29/multimodal-ai-chatbot/config"
	"github.com/muhammadumair29/multimodal-ai-chatbot/usecase"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := log.Setup(cfg.Debug, cfg.LogFile); err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}
	defer log.Sync()

	shutdownTracing, err := tracing.Setup(cfg.TraceFile)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HuggingFace.APIToken == "" {
		log.With().Warn("⚠️ HF_API_TOKEN not set, image requests will be rejected")
	}
	if cfg.Gemini.APIKey == "" {
		log.With().Warn("⚠️ GEMINI_API_KEY not set, conversation turns will be rejected")
	}

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	images := imagegen.NewHuggingFace(
		imagegen.WithBaseURL(cfg.HuggingFace.BaseURL),
		imagegen.WithAttempts(cfg.HuggingFace.Attempts),
		imagegen.WithHTTPClient(&http.Client{Timeout: cfg.HuggingFace.RequestTimeout}),
	)
	chats := llm.NewGeminiProvider(
		llm.WithModel(cfg.Gemini.Model),
		llm.WithBaseURL(cfg.Gemini.BaseURL),
	)
	svc := usecase.NewChatService(images, chats, hasher.New(),
		usecase.Credentials{ImageToken: cfg.HuggingFace.APIToken, ChatKey: cfg.Gemini.APIKey},
		usecase.WithBroker(broker),
		usecase.WithDefaultModel(cfg.ImageModelID()),
	)
	store := usecase.NewSessionStore(svc, cfg.SessionTTL)
	go store.RunSweeper(ctx, 0)

	wsServer := websocket.NewServer(store, broker)
	if err := wsServer.Start(ctx); err != nil {
		return err
	}
	chatHandler := httpadapter.NewChatHandler(store, cfg.JWTSecret, cfg.MaxConcurrentTurns)

	e := echo.New()
	e.HideBanner = true

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20))) // 20 requests per second per client

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"If-None-Match",
		},
		ExposeHeaders: []string{"ETag"},
		MaxAge:        86400, // 24 hours
	}))

	// Request size limit
	e.Use(middleware.BodyLimit("10MB"))

	chatHandler.Register(e.Group("/api/v1"))
	e.GET("/ws/sessions/:id", wsServer.Handler, chatHandler.JWTMiddleware)

	logger := log.With(zap.String("addr", cfg.HTTPAddr))
	logger.Info("🚀 Starting server")
	logger.Info("Available endpoints:\n" +
		"  GET    /api/v1/health                           - Health check\n" +
		"  GET    /api/v1/models                           - Image model registry\n" +
		"  POST   /api/v1/sessions                         - Start a session (returns JWT)\n" +
		"  POST   /api/v1/sessions/:id/messages            - Send a turn (JWT required)\n" +
		"  GET    /api/v1/sessions/:id/messages            - Transcript (JWT required)\n" +
		"  GET    /api/v1/sessions/:id/messages/:seq/image - Image bytes (JWT required)\n" +
		"  DELETE /api/v1/sessions/:id                     - End a session (JWT required)\n" +
		"  GET    /ws/sessions/:id?token=...               - Live transcript (JWT required)")

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
