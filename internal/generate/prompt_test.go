package generate

import (
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/replica/pkg/models"
)

func sampleRequest() models.GenerationRequest {
	tokens := models.NewDesignTokens()
	tokens.Color["primary"] = "#1a73e8"
	tokens.Spacing["md"] = "16px"
	return models.GenerationRequest{
		TargetURL: "https://shop.test/",
		Iteration: 2,
		Attempt:   1,
		Specs: []models.ComponentSpec{
			{ID: "layout:/html[1]/body[1]/header[1]", Kind: models.KindLayout, Roots: []string{"/html[1]/body[1]/header[1]"}, Reason: models.ReasonSemantic},
			{ID: "reusable:/html[1]/body[1]/main[1]/ul[1]/li[1]", Kind: models.KindReusable, Roots: []string{"/html[1]/body[1]/main[1]/ul[1]/li[1]"}, Recurrence: 4, Signature: "li.card[h3.title,span.price]", Reason: models.ReasonReusable},
		},
		Tokens: tokens,
		Failures: []models.ValidationFailure{
			models.NewStyleFailure("/html[1]/body[1]", "color", "#222222", "#000000"),
			models.NewStyleFailure("/html[1]/body[1]/main[1]", "padding-top", "16px", models.MissingValue),
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	system, user, err := BuildPrompt(sampleRequest(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(system, DefaultStack) || !strings.Contains(system, fileEnd) {
		t.Error("system prompt should carry the stack and the file format")
	}
	for _, want := range []string{
		"https://shop.test/",
		"repeated 4 times",
		"li.card[h3.title,span.price]",
		"primary:",
		"#1a73e8",
		"1. [high] /html[1]/body[1]: color should be #222222, got #000000",
		"2. [medium] /html[1]/body[1]/main[1]: padding-top should be 16px but is missing",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, "did not build") {
		t.Error("no problems section expected")
	}
}

func TestBuildPrompt_Problems(t *testing.T) {
	req := sampleRequest()
	for i := 0; i < maxProblemLines+5; i++ {
		req.Problems = append(req.Problems, "build: error")
	}
	_, user, err := BuildPrompt(req, "vite")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(user, "- build: error"); got != maxProblemLines {
		t.Errorf("problem lines = %d, want %d", got, maxProblemLines)
	}
}

func TestTokensYAML_RoundTrip(t *testing.T) {
	tokens := sampleRequest().Tokens
	data, err := TokensYAML(tokens)
	if err != nil {
		t.Fatal(err)
	}
	var back models.DesignTokens
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Color["primary"] != "#1a73e8" || back.Spacing["md"] != "16px" {
		t.Errorf("decoded %+v", back)
	}
}

func TestExplain_Structure(t *testing.T) {
	f := models.NewStructureFailure("/html[1]", "3 top-level components", "2 top-level components")
	if got := Explain(f); got != "[low] structure at /html[1]: expected 3 top-level components, found 2 top-level components" {
		t.Errorf("Explain = %q", got)
	}
}
