package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/muhammadumair29/multimodal-ai-chatbot/adapters/message_broker"
	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/usecase"
)

type stubImages struct{}

func (stubImages) Generate(ctx context.Context, prompt, credential, modelID string) (*domain.Image, error) {
	return &domain.Image{Data: []byte("png"), MIMEType: "image/png"}, nil
}

func newFeed(t *testing.T) (*usecase.SessionStore, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	broker := message_broker.NewChannelMessageBroker()
	svc := usecase.NewChatService(stubImages{}, nil, nil, usecase.Credentials{ImageToken: "tok"}, usecase.WithBroker(broker))
	store := usecase.NewSessionStore(svc, time.Hour)

	srv := NewServer(store, broker)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start err: %v", err)
	}

	e := echo.New()
	e.GET("/ws/sessions/:id", srv.Handler)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return store, ts
}

func dial(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/sessions/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.TranscriptEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev domain.TranscriptEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestFeedReplaysBacklogThenStreams(t *testing.T) {
	store, ts := newFeed(t)
	sess := store.Start(context.Background())

	if _, err := store.Execute(context.Background(), sess.ID, usecase.Turn{Text: "draw a cat"}); err != nil {
		t.Fatalf("Execute err: %v", err)
	}

	conn := dial(t, ts, sess.ID)
	for want := 0; want < 2; want++ {
		ev := readEvent(t, conn)
		if ev.Seq != want || ev.Type != domain.MessageAppended {
			t.Fatalf("backlog event %d: %+v", want, ev)
		}
	}

	if _, err := store.Execute(context.Background(), sess.ID, usecase.Turn{Text: "draw: a dog"}); err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	user := readEvent(t, conn)
	image := readEvent(t, conn)
	if user.Seq != 2 || user.Text != "draw: a dog" {
		t.Fatalf("unexpected live user event %+v", user)
	}
	if image.Seq != 3 || image.Kind != domain.ImageKind || image.Caption != "a dog" || image.MIMEType != "image/png" {
		t.Fatalf("unexpected live image event %+v", image)
	}

	if err := store.End(context.Background(), sess.ID); err != nil {
		t.Fatalf("End err: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != domain.SessionEnded {
		t.Fatalf("expected ended event, got %+v", ev)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after session end")
	}
}

func TestFeedUnknownSession(t *testing.T) {
	_, ts := newFeed(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/sessions/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestClientDropsFramesAlreadyReplayed(t *testing.T) {
	c := NewClient(context.Background(), nil, "s1")

	// Live frames arriving during replay are held back.
	if err := c.Deliver(Frame{Seq: 1, Payload: []byte("one")}); err != nil {
		t.Fatalf("Deliver err: %v", err)
	}
	if err := c.Deliver(Frame{Seq: 2, Payload: []byte("two")}); err != nil {
		t.Fatalf("Deliver err: %v", err)
	}
	if err := c.Replay([]Frame{{Seq: 0, Payload: []byte("zero")}, {Seq: 1, Payload: []byte("one")}}); err != nil {
		t.Fatalf("Replay err: %v", err)
	}
	if err := c.Deliver(Frame{Seq: -1, Payload: []byte("ended")}); err != nil {
		t.Fatalf("Deliver err: %v", err)
	}

	var got []string
	for len(c.send) > 0 {
		got = append(got, string(<-c.send))
	}
	want := []string{"zero", "one", "two", "ended"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got frames %v, want %v", got, want)
	}

	c.Close()
	if err := c.Deliver(Frame{Seq: 3}); err == nil {
		t.Fatal("expected error after close")
	}
}
