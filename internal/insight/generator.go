package insight

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/careerpulse/internal/models"
)

// TextGenerator performs one prompt-in, text-out upstream call.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator requests and parses one insight report per call.
type Generator struct {
	model TextGenerator
}

// NewGenerator creates a generator over the given text model.
func NewGenerator(model TextGenerator) *Generator {
	return &Generator{model: model}
}

// Generate issues exactly one upstream request for topic and returns the
// parsed report. Upstream failures wrap ErrUpstreamTimeout or
// ErrUpstreamUnavailable; parse failures wrap ErrMalformedPayload.
func (g *Generator) Generate(ctx context.Context, topic string) (*models.InsightReport, error) {
	raw, err := g.model.Generate(ctx, BuildPrompt(topic))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return Parse(raw)
}
