package generator

import (
	"context"
	"fmt"

	"hero-mint-service/internal/core/ports"

	"github.com/skip2/go-qrcode"
)

const maxPlaceholderPayload = 512

// PlaceholderGenerator renders a QR code of the prompt as PNG. It needs no
// external service and is deterministic for a given request.
type PlaceholderGenerator struct {
	size int
}

// NewPlaceholderGenerator creates a placeholder generator producing size x size images.
func NewPlaceholderGenerator(size int) *PlaceholderGenerator {
	if size <= 0 {
		size = 512
	}
	return &PlaceholderGenerator{size: size}
}

func (g *PlaceholderGenerator) Generate(ctx context.Context, req ports.GenerationRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload := "hero-mint:" + composePrompt(req)
	if len(payload) > maxPlaceholderPayload {
		payload = payload[:maxPlaceholderPayload]
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("render placeholder: %w", err)
	}
	return png, nil
}

func (g *PlaceholderGenerator) Name() string {
	return "placeholder"
}
