package usecase

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		input   string
		route   Route
		trigger string
		prompt  string
	}{
		{input: "draw: a cat", route: RouteImage, trigger: "draw:", prompt: "a cat"},
		{input: "Draw an image: A Sunset over Lahore", route: RouteImage, trigger: "draw an image:", prompt: "A Sunset over Lahore"},
		{input: "draw an image of a fox", route: RouteImage, trigger: "draw an image", prompt: "of a fox"},
		{input: "GENERATE IMAGE: robots", route: RouteImage, trigger: "generate image:", prompt: "robots"},
		{input: "generate an image:  ::  a castle ", route: RouteImage, trigger: "generate an image:", prompt: "a castle"},
		{input: "create image a boat", route: RouteImage, trigger: "create image", prompt: "a boat"},
		{input: "create an image: a tree", route: RouteImage, trigger: "create an image:", prompt: "a tree"},
		{input: "drawer organization tips", route: RouteImage, trigger: "draw", prompt: "er organization tips"},
		{input: "draw:", route: RouteImage, trigger: "draw:", prompt: ""},
		{input: "draw  :  ", route: RouteImage, trigger: "draw", prompt: ""},
		{input: "please draw a cat", route: RouteConversation, prompt: "please draw a cat"},
		{input: "what is 2+2?", route: RouteConversation, prompt: "what is 2+2?"},
		{input: " draw: leading space", route: RouteConversation, prompt: " draw: leading space"},
		{input: "", route: RouteConversation, prompt: ""},
	}

	for _, tc := range cases {
		got := Classify(tc.input)
		if got.Route != tc.route {
			t.Errorf("Classify(%q).Route = %v, want %v", tc.input, got.Route, tc.route)
			continue
		}
		if got.Trigger != tc.trigger {
			t.Errorf("Classify(%q).Trigger = %q, want %q", tc.input, got.Trigger, tc.trigger)
		}
		if got.Prompt != tc.prompt {
			t.Errorf("Classify(%q).Prompt = %q, want %q", tc.input, got.Prompt, tc.prompt)
		}
	}
}

func TestTriggerPhrasesLongestFirstWithinFamily(t *testing.T) {
	seen := map[string]int{}
	for i, p := range TriggerPhrases {
		seen[p] = i
	}
	pairs := [][2]string{
		{"draw an image:", "draw"},
		{"draw:", "draw"},
		{"generate an image:", "generate an image"},
		{"create image:", "create image"},
	}
	for _, pair := range pairs {
		if seen[pair[0]] > seen[pair[1]] {
			t.Errorf("%q must precede %q", pair[0], pair[1])
		}
	}
}

func TestRouteString(t *testing.T) {
	if RouteImage.String() != "image" || RouteConversation.String() != "conversation" {
		t.Fatalf("unexpected route names %q %q", RouteImage, RouteConversation)
	}
}
