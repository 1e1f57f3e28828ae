package usecase

import "strings"

type Route int

const (
	RouteConversation Route = iota
	RouteImage
)

func (r Route) String() string {
	switch r {
	case RouteImage:
		return "image"
	default:
		return "conversation"
	}
}

// TriggerPhrases are tested in order against the lower-cased input; the first
// prefix match wins. Within each family the longer phrase comes first so the
// colon and article are consumed with the trigger.
var TriggerPhrases = []string{
	"draw an image:",
	"draw an image",
	"draw:",
	"draw",
	"generate an image:",
	"generate an image",
	"generate image:",
	"generate image",
	"create an image:",
	"create an image",
	"create image:",
	"create image",
}

// Classification is the outcome of routing one raw user string.
type Classification struct {
	Route   Route
	Trigger string
	// Prompt is the image prompt for RouteImage and the whole input otherwise.
	Prompt string
}

// Classify decides whether input asks for an image. Matching is a plain
// prefix test, so "drawer" still triggers "draw".
func Classify(input string) Classification {
	lowered := strings.ToLower(input)
	for _, trigger := range TriggerPhrases {
		if !strings.HasPrefix(lowered, trigger) {
			continue
		}
		return Classification{
			Route:   RouteImage,
			Trigger: trigger,
			Prompt:  imagePrompt(input, lowered, trigger),
		}
	}
	return Classification{Route: RouteConversation, Prompt: input}
}

func imagePrompt(input, lowered, trigger string) string {
	// Lower-casing can change byte lengths for some runes; fall back to the
	// lowered text when the original does not carry the trigger at the same
	// width.
	rest := lowered[len(trigger):]
	if len(input) >= len(trigger) && strings.EqualFold(input[:len(trigger)], trigger) {
		rest = input[len(trigger):]
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimLeft(rest, ":")
	return strings.TrimSpace(rest)
}
