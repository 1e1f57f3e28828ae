package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/usecase"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

// Server streams transcript events from the broker to websocket viewers.
type Server struct {
	upgrader      websocket.Upgrader
	store         *usecase.SessionStore
	messageBroker domain.MessageBroker
	hub           *Hub
}

func NewServer(store *usecase.SessionStore, messageBroker domain.MessageBroker) *Server {
	return &Server{
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		store:         store,
		messageBroker: messageBroker,
		hub:           NewHub(),
	}
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

// Start subscribes to transcript events and forwards them until ctx is done.
// The subscription is in place when Start returns.
func (s *Server) Start(ctx context.Context) error {
	messageChan, err := s.messageBroker.Subscribe(ctx, domain.TranscriptTopic, "")
	if err != nil {
		log.WithCtx(ctx).Error("❌ Failed to subscribe to transcript topic", zap.Error(err))
		return err
	}

	log.WithCtx(ctx).Info("🎧 WebSocket server listening to transcript events")
	go s.forward(ctx, messageChan)
	return nil
}

func (s *Server) forward(ctx context.Context, messageChan <-chan domain.Envelope) {
	for {
		select {
		case msg, ok := <-messageChan:
			if !ok {
				log.WithCtx(ctx).Info("🔒 Transcript listener stopped")
				return
			}
			var ev domain.TranscriptEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.WithCtx(ctx).Error("❌ Failed to unmarshal transcript event", zap.Error(err))
				continue
			}

			switch ev.Type {
			case domain.SessionEnded:
				s.hub.SendToSession(ev.SessionID, Frame{Seq: -1, Payload: msg.Payload})
				s.hub.CloseSession(ev.SessionID)
			default:
				n := s.hub.SendToSession(ev.SessionID, Frame{Seq: ev.Seq, Payload: msg.Payload})
				log.WithCtx(log.ContextWithSession(ctx, ev.SessionID)).Debug("📤 Forwarded transcript event",
					zap.Int("seq", ev.Seq),
					zap.Int("viewers", n))
			}

		case <-ctx.Done():
			log.WithCtx(ctx).Info("🔒 Transcript listener stopped")
			return
		}
	}
}

// backlog renders the transcript so far as frames.
func backlog(sess *usecase.Session) ([]Frame, error) {
	msgs := sess.Transcript.Messages()
	frames := make([]Frame, 0, len(msgs))
	for _, m := range msgs {
		payload, err := json.Marshal(domain.NewMessageEvent(sess.ID, m))
		if err != nil {
			return nil, err
		}
		frames = append(frames, Frame{Seq: m.Seq, Payload: payload})
	}
	return frames, nil
}
