// Package describe turns the two analysis records into the final video
// description and its confidence score. The primary path prompts the text
// generator; when that fails for any reason the deterministic template
// fallback takes over, so description synthesis never fails a job.
package describe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

// TextGenerator runs one prompt through the description model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, models.GenerationMetrics, error)
}

// Synthesizer produces descriptions from analysis records.
type Synthesizer struct {
	generator TextGenerator
	timeout   time.Duration
}

// NewSynthesizer wires a generator with the configured call timeout.
func NewSynthesizer(generator TextGenerator, cfg config.GenerationConfig) *Synthesizer {
	return &Synthesizer{generator: generator, timeout: cfg.Timeout}
}

// Describe generates a description for the analyzed video. It always
// returns a non-empty description: generator failures and timeouts fall
// back to the template path, marked in the returned metrics.
func (s *Synthesizer) Describe(ctx context.Context, visual *models.VisualAnalysis, audio *models.AudioAnalysis, sourceRef string) (string, models.GenerationMetrics) {
	if s.generator == nil {
		return fallbackDescription(visual, audio)
	}

	prompt := buildPrompt(visual, audio, sourceRef)

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, metrics, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		slog.Warn("Description generation failed, using template fallback.", "error", err)
		return fallbackDescription(visual, audio)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Warn("Description generation returned empty text, using template fallback.")
		return fallbackDescription(visual, audio)
	}
	return text, metrics
}
