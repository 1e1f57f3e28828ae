package hasher

import "testing"

func TestHash(t *testing.T) {
	h := New()
	// sha256("")
	if got := h.Hash(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("unexpected digest %s", got)
	}
	if h.Hash([]byte("a")) == h.Hash([]byte("b")) {
		t.Fatal("distinct payloads must hash differently")
	}
	if len(h.Hash([]byte("image"))) != 64 {
		t.Fatal("expected hex encoded sha256")
	}
}
