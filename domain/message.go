package domain

import "time"

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

type Kind string

const (
	TextKind  Kind = "text"
	ImageKind Kind = "image"
	// NoticeKind is an assistant-authored failure report. Its display text
	// is derived from Failure when rendered.
	NoticeKind Kind = "notice"
)

// UploadCaption labels an image the user attached to a conversational turn.
const UploadCaption = "You uploaded this image."

// Message is one transcript entry. It is never modified after it has been
// appended.
type Message struct {
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content,omitempty"`
	Image     *Image    `json:"-"`
	Caption   string    `json:"caption,omitempty"`
	Model     string    `json:"model,omitempty"`
	Failure   error     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Text renders the message the way it is shown to the user.
func (m Message) Text() string {
	switch m.Kind {
	case NoticeKind:
		return DescribeFailure(m.Failure)
	case ImageKind:
		return m.Caption
	default:
		return m.Content
	}
}
