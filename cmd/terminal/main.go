package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/hasher"
	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/imagegen"
	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/llm"
	"github.com/muhammadumair29/multimodal-ai-chatbot/config"
	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/usecase"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_ = log.SetupFileOnly(cfg.Debug, cfg.LogFile)
	defer log.Sync()

	shutdownTracing, err := tracing.Setup(cfg.TraceFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	images := imagegen.NewHuggingFace(
		imagegen.WithBaseURL(cfg.HuggingFace.BaseURL),
		imagegen.WithAttempts(cfg.HuggingFace.Attempts),
		imagegen.WithHTTPClient(&http.Client{Timeout: cfg.HuggingFace.RequestTimeout}),
	)
	chats := llm.NewGeminiProvider(llm.WithModel(cfg.Gemini.Model), llm.WithBaseURL(cfg.Gemini.BaseURL))
	svc := usecase.NewChatService(images, chats, hasher.New(),
		usecase.Credentials{ImageToken: cfg.HuggingFace.APIToken, ChatKey: cfg.Gemini.APIKey},
		usecase.WithDefaultModel(cfg.ImageModelID()),
	)

	fmt.Println("Setting up your session...")
	sess := svc.StartSession(ctx, "terminal")
	switch err := sess.ChatErr(); {
	case errors.Is(err, domain.ErrMissingCredential) && cfg.Gemini.APIKey == "":
		fmt.Println("⚠️  GEMINI_API_KEY is not set, conversation turns will be rejected.")
	case err != nil:
		fmt.Printf("⚠️  Conversation unavailable: %s\n", domain.DescribeFailure(err))
	}
	if cfg.HuggingFace.APIToken == "" {
		fmt.Println("⚠️  HF_API_TOKEN is not set, image requests will be rejected.")
	}
	fmt.Println(helpText)

	r := newREPL(svc, sess, os.Stdout, cfg.OutputDir)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok || r.handle(ctx, line) {
				svc.EndSession(ctx, sess)
				fmt.Println("Bye!")
				return
			}
		}
	}
}
