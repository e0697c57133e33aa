// Package generator holds the artwork generator adapters. Every adapter makes
// a single attempt per call; retries belong to the client, which resubmits
// the mint with the same idempotency key.
package generator

import (
	"errors"
	"fmt"
	"strings"

	"hero-mint-service/config"
	"hero-mint-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// ErrEmptyArtwork is returned when a generator produced no image bytes.
var ErrEmptyArtwork = errors.New("generator returned no image data")

// ErrResponseTooLarge is returned instead of parsing a truncated response.
var ErrResponseTooLarge = errors.New("generator response too large")

// New builds the generator selected by cfg.Driver.
func New(cfg config.GeneratorConfig, log zerolog.Logger) (ports.AssetGenerator, error) {
	switch cfg.Driver {
	case "http":
		return NewHTTPGenerator(cfg, nil, log)
	case "placeholder", "":
		return NewPlaceholderGenerator(cfg.ImageSize), nil
	default:
		return nil, fmt.Errorf("unknown generator driver %q", cfg.Driver)
	}
}

// composePrompt folds theme and category into the free-text prompt.
func composePrompt(req ports.GenerationRequest) string {
	parts := []string{strings.TrimSpace(req.Prompt)}
	if req.Theme != "" {
		parts = append(parts, "theme: "+req.Theme)
	}
	if req.Category != "" {
		parts = append(parts, "category: "+req.Category)
	}
	return strings.Join(parts, "; ")
}
