package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/replica/internal/runlog"
	"github.com/ShayCichocki/replica/pkg/models"
)

// DefaultMaxTokens is the output budget of one generation.
const DefaultMaxTokens = 16000

// ClaudeGenerator generates project files with a Claude model.
type ClaudeGenerator struct {
	completer Completer
	maxTokens int64
	stack     string
}

// GeneratorOption is a functional option for configuring a ClaudeGenerator.
type GeneratorOption func(*ClaudeGenerator)

// WithMaxTokens sets the output token budget.
func WithMaxTokens(n int64) GeneratorOption {
	return func(g *ClaudeGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithStack sets the target stack description.
func WithStack(stack string) GeneratorOption {
	return func(g *ClaudeGenerator) {
		g.stack = stack
	}
}

// NewClaudeGenerator creates a generator on top of a Completer, normally a
// *Client.
func NewClaudeGenerator(completer Completer, opts ...GeneratorOption) *ClaudeGenerator {
	g := &ClaudeGenerator{
		completer: completer,
		maxTokens: DefaultMaxTokens,
		stack:     DefaultStack,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the model for a complete project. Token usage is reported
// even when the output is rejected. Malformed or truncated output and
// transient API failures are retryable generation errors; request, auth and
// unknown-model errors are not.
func (g *ClaudeGenerator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	system, user, err := BuildPrompt(req, g.stack)
	if err != nil {
		return nil, models.NewGenerationError(err, false)
	}

	runlog.Logf("[generate] iteration %d attempt %d: prompt %d chars, %d failures", req.Iteration, req.Attempt, len(user), len(req.Failures))

	completion, err := g.completer.Complete(ctx, system, user, g.maxTokens)
	if err != nil {
		return nil, models.NewGenerationError(fmt.Errorf("model call: %w", err), retryableAPIError(err))
	}

	result := &models.GenerationResult{
		TokensIn:  completion.TokensIn,
		TokensOut: completion.TokensOut,
	}

	files, err := ParseFiles(completion.Text)
	if completion.StopReason == anthropic.StopReasonMaxTokens {
		genErr := models.NewGenerationError(fmt.Errorf("output truncated at %d tokens after %d files", g.maxTokens, len(files)), true)
		genErr.Truncated = true
		return result, genErr
	}
	if err != nil {
		return result, models.NewGenerationError(fmt.Errorf("malformed output: %w", err), true)
	}

	result.Files = files
	return result, nil
}

// retryableAPIError reports whether a model API error may succeed on retry.
func retryableAPIError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}
	return true
}
