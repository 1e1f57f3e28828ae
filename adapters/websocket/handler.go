package websocket

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

// Handler serves GET /ws/sessions/:id. The viewer first receives the whole
// transcript, then every message appended afterwards.
func (s *Server) Handler(c echo.Context) error {
	sessionID := c.Param("id")
	sess, err := s.store.Get(sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Session not found")
		}
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(c.Request().Context(), conn, sessionID)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run()

	frames, err := backlog(sess)
	if err != nil {
		log.WithCtx(client.Context()).Error("❌ Failed to render backlog", zap.Error(err))
		return nil
	}
	if err := client.Replay(frames); err != nil {
		return nil
	}
	// The session may have ended before the client was registered.
	if _, err := s.store.Get(sessionID); err != nil {
		return nil
	}
	log.WithCtx(client.Context()).Info("👀 Viewer connected", zap.Int("backlog", len(frames)))

	<-client.Context().Done()
	return nil
}
