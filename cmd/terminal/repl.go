package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/usecase"
)

const helpText = `Commands:
  /image <path>   attach an image to your next message
  /model <name>   choose the image model (name or id)
  /models         list image models
  /help           show this help
  /quit           leave
Start a message with "draw:" or "generate an image:" to create an image.`

// repl drives one session from line input.
type repl struct {
	svc       *usecase.ChatService
	sess      *usecase.Session
	out       io.Writer
	outputDir string

	model   string
	pending *domain.Image
}

func newREPL(svc *usecase.ChatService, sess *usecase.Session, out io.Writer, outputDir string) *repl {
	return &repl{svc: svc, sess: sess, out: out, outputDir: outputDir}
}

// handle processes one input line and reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "/") {
		return r.command(trimmed)
	}

	turn := usecase.Turn{Text: line, Attachment: r.pending, ModelID: r.model}
	result, err := r.svc.Execute(ctx, r.sess, turn)
	if err != nil {
		var warning *domain.Warning
		if errors.As(err, &warning) {
			fmt.Fprintf(r.out, "⚠️  %s\n", warning.Message)
			return false
		}
		fmt.Fprintf(r.out, "❌ %v\n", err)
		return false
	}
	for _, msg := range result.Appended {
		r.render(msg)
	}
	if r.pending != nil {
		if result.Route == usecase.RouteConversation {
			r.pending = nil
		} else {
			fmt.Fprintln(r.out, "📎 Image requests don't use attachments, keeping it for your next message.")
		}
	}
	return false
}

func (r *repl) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/models":
		current := r.sess.ModelID()
		if r.model != "" {
			current = r.model
		}
		for _, m := range domain.ImageModels {
			marker := " "
			if m.ID == current {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s %s (%s)\n", marker, m.Name, m.ID)
		}
	case "/model":
		m, ok := domain.LookupImageModel(arg)
		if !ok {
			fmt.Fprintf(r.out, "⚠️  Unknown image model %q. Try /models.\n", arg)
			return false
		}
		r.model = m.ID
		fmt.Fprintf(r.out, "Image model set to %s.\n", m.Name)
	case "/image":
		img, err := loadImage(arg)
		if err != nil {
			fmt.Fprintf(r.out, "⚠️  %v\n", err)
			return false
		}
		r.pending = img
		fmt.Fprintf(r.out, "📎 Attached %s (%dx%d). It will be sent with your next message.\n", filepath.Base(arg), img.Width, img.Height)
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help.\n", name)
	}
	return false
}

func (r *repl) render(msg domain.Message) {
	switch {
	case msg.Role == domain.UserRole && msg.Kind == domain.ImageKind:
		fmt.Fprintf(r.out, "📎 %s\n", msg.Text())
	case msg.Role == domain.UserRole:
		// the user already sees their own line
	case msg.Kind == domain.NoticeKind:
		fmt.Fprintf(r.out, "⚠️  %s\n", msg.Text())
	case msg.Kind == domain.ImageKind:
		path, err := r.save(msg)
		if err != nil {
			fmt.Fprintf(r.out, "❌ Could not save image: %v\n", err)
			return
		}
		fmt.Fprintf(r.out, "🖼️  %s\n    saved to %s\n", msg.Caption, path)
	default:
		fmt.Fprintf(r.out, "🤖 %s\n", msg.Text())
	}
}

func (r *repl) save(msg domain.Message) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", err
	}
	id := r.sess.ID
	if len(id) > 8 {
		id = id[:8]
	}
	path := filepath.Join(r.outputDir, fmt.Sprintf("%s-%03d%s", id, msg.Seq, msg.Image.Extension()))
	if err := os.WriteFile(path, msg.Image.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func loadImage(path string) (*domain.Image, error) {
	if path == "" {
		return nil, errors.New("usage: /image <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	img, err := domain.NewImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s is not a readable image", path)
	}
	if !img.IsAttachable() {
		return nil, fmt.Errorf("only PNG and JPEG images can be attached, got %s", img.MIMEType)
	}
	return img, nil
}
