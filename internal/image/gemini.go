package image

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/samber/do"
)

const DefaultEndpoint = "https://api.apiyi.com/v1beta/models/gemini-3-pro-image-preview:generateContent"

type Config struct {
	APIKey         string
	Endpoint       string
	Timeouts       Timeouts
	MaxSourceBytes int64
}

type GeminiGenerator struct {
	builder   Builder
	transport *Transport
	now       func() time.Time
}

func New(cfg Config, client *http.Client) *GeminiGenerator {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = DefaultTimeouts()
	}
	return &GeminiGenerator{
		builder: Builder{MaxSourceBytes: cfg.MaxSourceBytes},
		transport: &Transport{
			Client:   client,
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Timeouts: cfg.Timeouts,
		},
		now: time.Now,
	}
}

func NewGeminiGenerator(i *do.Injector) (Generator, error) {
	cfg := do.MustInvoke[Config](i)
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	return New(cfg, do.MustInvoke[*http.Client](i)), nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) Result {
	logger := log.FromContextOrDiscard(ctx).WithGroup("gemini").With(
		"prompt", req.Prompt,
		"aspect_ratio", req.AspectRatio,
		"resolution", req.Resolution,
		"edit", req.Edit(),
	)
	logger.Info("generating image")

	start := g.now()
	fail := func(err error) Result {
		var e *Error
		if !errors.As(err, &e) {
			e = &Error{Reason: ReasonUnknownTransport, Detail: err.Error(), Err: err}
		}
		logger.Error("image generation failed", "reason", e.Reason, "error", e.Error())
		return Result{Elapsed: g.now().Sub(start), Err: e}
	}

	body, err := g.builder.Build(req)
	if err != nil {
		return fail(err)
	}

	raw, err := g.transport.Post(ctx, body, req.Resolution)
	if err != nil {
		return fail(err)
	}

	img, err := Decode(raw)
	if err != nil {
		return fail(err)
	}

	elapsed := g.now().Sub(start)
	logger.Info("received image", "bytes", len(img.Data), "mime_type", img.MIMEType, "elapsed", elapsed.String())
	return Result{Image: img.Data, MIMEType: img.MIMEType, Elapsed: elapsed}
}
