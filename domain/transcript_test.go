package domain

import (
	"sync"
	"testing"
)

func TestTranscriptAppendAssignsSeq(t *testing.T) {
	tr := NewTranscript()
	first := tr.Append(Message{Role: UserRole, Kind: TextKind, Content: "a"})
	second := tr.Append(Message{Role: AssistantRole, Kind: TextKind, Content: "b", Seq: 99})

	if first.Seq != 0 || second.Seq != 1 {
		t.Fatalf("unexpected seqs %d %d", first.Seq, second.Seq)
	}
	if m, ok := tr.At(1); !ok || m.Content != "b" {
		t.Fatalf("At(1) = %+v, %v", m, ok)
	}
	if _, ok := tr.At(2); ok {
		t.Fatal("At past the end should fail")
	}
	if _, ok := tr.At(-1); ok {
		t.Fatal("negative At should fail")
	}
}

func TestTranscriptMessagesIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Message{Content: "original"})

	msgs := tr.Messages()
	msgs[0].Content = "changed"
	if m, _ := tr.At(0); m.Content != "original" {
		t.Fatal("transcript mutated through returned slice")
	}
}

func TestTranscriptConcurrentAppend(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Append(Message{Kind: TextKind})
		}()
	}
	wg.Wait()

	for i, m := range tr.Messages() {
		if m.Seq != i {
			t.Fatalf("message %d has seq %d", i, m.Seq)
		}
	}
	if tr.Len() != 50 {
		t.Fatalf("expected 50 messages, got %d", tr.Len())
	}
}
