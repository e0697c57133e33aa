package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hero-mint-service/config"
	"hero-mint-service/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 32 << 20

// HTTPGenerator calls an image generation API that answers with a base64
// encoded image somewhere in its JSON response.
type HTTPGenerator struct {
	client       *http.Client
	endpoint     string
	apiKey       string
	model        string
	size         int
	responsePath string
	maxResponse  int
	limiter      *rate.Limiter
	log          zerolog.Logger
}

// NewHTTPGenerator creates an HTTP generator. A nil client gets one with
// cfg.Timeout.
func NewHTTPGenerator(cfg config.GeneratorConfig, client *http.Client, log zerolog.Logger) (*HTTPGenerator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("generator endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	path := cfg.ResponsePath
	if path == "" {
		path = "data.0.b64_json"
	}
	size := cfg.ImageSize
	if size <= 0 {
		size = 512
	}

	return &HTTPGenerator{
		client:       client,
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		size:         size,
		responsePath: path,
		maxResponse:  maxResponseBytes,
		limiter:      rate.NewLimiter(limit, burst),
		log:          log.With().Str("component", "generator").Logger(),
	}, nil
}

type generateBody struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

// Generate makes exactly one upstream call.
func (g *HTTPGenerator) Generate(ctx context.Context, req ports.GenerationRequest) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("generator rate limit: %w", err)
	}

	body, err := json.Marshal(generateBody{
		Model:          g.model,
		Prompt:         composePrompt(req),
		N:              1,
		Size:           fmt.Sprintf("%dx%d", g.size, g.size),
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("encode generator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, int64(g.maxResponse)+1))
	if err != nil {
		return nil, fmt.Errorf("read generator response: %w", err)
	}
	if len(payload) > g.maxResponse {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, g.maxResponse)
	}

	g.log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Int("bytes", len(payload)).
		Msg("Generator responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(payload, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("generator returned %d: %s", resp.StatusCode, msg)
	}

	encoded := gjson.GetBytes(payload, g.responsePath)
	if !encoded.Exists() || encoded.String() == "" {
		return nil, fmt.Errorf("%w at %q", ErrEmptyArtwork, g.responsePath)
	}
	img, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, fmt.Errorf("decode generator image: %w", err)
	}
	if len(img) == 0 {
		return nil, ErrEmptyArtwork
	}
	return img, nil
}

func (g *HTTPGenerator) Name() string {
	return "http"
}
