package domain

import "context"

// ChatProvider opens remote conversations on a chat/LLM provider.
type ChatProvider interface {
	// StartChat opens one conversation with empty prior history.
	StartChat(ctx context.Context, credential string) (ChatSession, error)
}

// ChatSession is a handle to remote conversation state. The provider keeps
// the history; callers only send the next turn.
type ChatSession interface {
	// SendMessage sends the attachments followed by text as a single
	// multi-part message and returns the model's reply or a *ProviderError.
	SendMessage(ctx context.Context, text string, attachments []*Image) (string, error)
}
