package domain

// Hasher digests image payloads so they can be addressed and cached by content.
type Hasher interface {
	Hash(data []byte) string
}
