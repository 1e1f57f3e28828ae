package hasher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
)

// New returns a domain.Hasher producing hex SHA-256 digests. Image digests
// double as HTTP ETags.
func New() domain.Hasher { return sha256Hasher{} }

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
