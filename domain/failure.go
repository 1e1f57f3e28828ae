package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential     = errors.New("missing credential")
	ErrEmptyInput            = errors.New("empty message")
	ErrEmptyPrompt           = errors.New("empty image prompt")
	ErrUnknownModel          = errors.New("unknown image model")
	ErrUnsupportedAttachment = errors.New("unsupported attachment")
	ErrChatUnavailable       = errors.New("conversation unavailable")
	ErrSessionNotFound       = errors.New("session not found")
)

// Warning rejects a turn before anything is appended or any provider is
// contacted. Message is meant for the user.
type Warning struct {
	Err     error
	Message string
}

func NewWarning(err error, message string) *Warning {
	return &Warning{Err: err, Message: message}
}

func (w *Warning) Error() string {
	return w.Message
}

func (w *Warning) Unwrap() error {
	return w.Err
}

type FailureReason string

const (
	ReasonExhausted  FailureReason = "exhausted"
	ReasonCanceled   FailureReason = "canceled"
	ReasonInit       FailureReason = "init"
	ReasonSend       FailureReason = "send"
	ReasonEmptyReply FailureReason = "empty_reply"
)

// GenerationError is the terminal failure of an image generation request.
type GenerationError struct {
	Model    string
	Attempts int
	Reason   FailureReason
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("image generation with %s failed after %d attempt(s) (%s): %v", e.Model, e.Attempts, e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ProviderError is a failure reported by a conversational provider.
type ProviderError struct {
	Provider string
	Reason   FailureReason
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Reason, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// DescribeFailure turns a typed failure into the text shown in the transcript.
func DescribeFailure(err error) string {
	if err == nil {
		return ""
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return "Image generation failed."
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return fmt.Sprintf("Error sending message to %s: %v", provErr.Provider, provErr.Err)
	}

	return err.Error()
}
