package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	f := newFixture(bothKeys)
	store := NewSessionStore(f.svc, time.Hour)

	sess := store.Start(context.Background())
	if sess.ID == "" {
		t.Fatal("expected generated session id")
	}
	got, err := store.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get returned %v, %v", got, err)
	}

	if _, err := store.Execute(context.Background(), sess.ID, Turn{Text: "hello"}); err != nil {
		t.Fatalf("Execute err: %v", err)
	}

	if err := store.End(context.Background(), sess.ID); err != nil {
		t.Fatalf("End err: %v", err)
	}
	if _, err := store.Get(sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found after end, got %v", err)
	}
	if err := store.End(context.Background(), sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found on second end, got %v", err)
	}
	if _, err := store.Execute(context.Background(), sess.ID, Turn{Text: "hello"}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found on execute, got %v", err)
	}
}

func TestSessionStoreIsolatesTranscripts(t *testing.T) {
	f := newFixture(bothKeys)
	store := NewSessionStore(f.svc, time.Hour)

	a := store.Start(context.Background())
	b := store.Start(context.Background())
	if a.ID == b.ID {
		t.Fatal("session ids must differ")
	}
	if _, err := store.Execute(context.Background(), a.ID, Turn{Text: "draw a cat"}); err != nil {
		t.Fatalf("Execute err: %v", err)
	}
	if a.Transcript.Len() != 2 || b.Transcript.Len() != 0 {
		t.Fatalf("unexpected transcript sizes %d %d", a.Transcript.Len(), b.Transcript.Len())
	}
}

func TestSessionStoreSweep(t *testing.T) {
	f := newFixture(bothKeys)
	store := NewSessionStore(f.svc, 10*time.Minute)
	sess := store.Start(context.Background())

	started := sess.LastActive()
	if n := store.Sweep(context.Background(), started.Add(5*time.Minute)); n != 0 {
		t.Fatalf("expected nothing swept, got %d", n)
	}
	if n := store.Sweep(context.Background(), started.Add(11*time.Minute)); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}

	events := f.broker.events(t)
	if last := events[len(events)-1]; last.Type != domain.SessionEnded || last.SessionID != sess.ID {
		t.Fatalf("expected ended event, got %+v", last)
	}
}
