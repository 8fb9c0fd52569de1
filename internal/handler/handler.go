package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/iProgramme/AI-shouban/internal/image"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/iProgramme/AI-shouban/internal/prompt"
	"github.com/iProgramme/AI-shouban/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Input struct {
	Prompt      string            `json:"prompt,omitempty"`
	AspectRatio image.AspectRatio `json:"aspect_ratio,omitempty"`
	Resolution  image.Resolution  `json:"resolution,omitempty"`
	SourcePaths []string          `json:"source_paths,omitempty"`
	Image       string            `json:"image,omitempty"`
	ImageName   string            `json:"image_name,omitempty"`
	Name        string            `json:"name,omitempty"`
	Prefix      string            `json:"prefix,omitempty"`
}

func (i Input) toRequest() (image.Request, error) {
	req := image.Request{
		Prompt:      i.Prompt,
		AspectRatio: i.AspectRatio,
		Resolution:  i.Resolution,
		SourcePaths: i.SourcePaths,
	}
	if i.Image != "" {
		data, err := base64.StdEncoding.DecodeString(i.Image)
		if err != nil {
			return req, &image.Error{Reason: image.ReasonSourceNotFound, Detail: "inline source image is not valid base64", Err: err}
		}
		req.Sources = append(req.Sources, image.Source{Name: i.ImageName, Data: data})
	}
	return req, nil
}

func (i Input) toMetadata() map[string]string {
	return map[string]string{
		"prompt":       i.Prompt,
		"aspect_ratio": string(i.AspectRatio),
		"resolution":   string(i.Resolution),
		"mode":         lo.Ternary(len(i.SourcePaths) > 0 || i.Image != "", "i2i", "t2i"),
	}
}

type Output struct {
	Prompt      string            `json:"prompt"`
	AspectRatio image.AspectRatio `json:"aspect_ratio,omitempty"`
	Resolution  image.Resolution  `json:"resolution,omitempty"`
	Location    string            `json:"location,omitempty"`
	Size        int               `json:"size,omitempty"`
	Elapsed     time.Duration     `json:"elapsed"`

	// Image is kept when the service produced an image but saving it failed.
	Image []byte `json:"-"`
}

type Handler struct {
	randomizer  *prompt.Randomizer
	generator   image.Generator
	uploader    store.Uploader
	invalidator store.Invalidator
	prefix      string
	latest      bool
	now         func() time.Time
}

type Option func(*Handler)

func WithRandomizer(r *prompt.Randomizer) Option {
	return func(h *Handler) { h.randomizer = r }
}

// WithInvalidator also turns on the "latest" alias: every saved image is
// copied to latest<ext> and both paths are invalidated.
func WithInvalidator(inv store.Invalidator) Option {
	return func(h *Handler) {
		h.invalidator = inv
		h.latest = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func New(generator image.Generator, uploader store.Uploader, prefix string, opts ...Option) *Handler {
	h := &Handler{
		generator:   generator,
		uploader:    uploader,
		invalidator: store.NopInvalidator{},
		prefix:      prefix,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func NewHandler(i *do.Injector) (*Handler, error) {
	opts := []Option{WithRandomizer(do.MustInvoke[*prompt.Randomizer](i))}
	if do.MustInvokeNamed[bool](i, "latest_alias") {
		opts = append(opts, WithInvalidator(do.MustInvoke[store.Invalidator](i)))
	}
	return New(
		do.MustInvoke[image.Generator](i),
		do.MustInvoke[store.Uploader](i),
		do.MustInvokeNamed[string](i, "output_prefix"),
		opts...,
	), nil
}

// Handle generates one image and saves it. A generation failure returns an
// empty Output; a save failure returns the image bytes with a WriteFailed error.
func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("handler").With("input", input.Prompt)
	logger.Info("handling generation request")

	if input.Prompt == "" && h.randomizer != nil {
		preset, err := h.randomizer.Randomize(ctx)
		if err != nil && !errors.Is(err, prompt.ErrNoPresets) {
			return Output{}, err
		}
		input.Prompt = preset.Prompt
		input.AspectRatio = lo.Ternary(input.AspectRatio != "", input.AspectRatio, preset.AspectRatio)
	}

	out := Output{Prompt: input.Prompt, AspectRatio: input.AspectRatio, Resolution: input.Resolution}

	if err := store.CheckName(h.name(input, ".png")); err != nil {
		return out, &image.Error{Reason: image.ReasonInvalidName, Detail: err.Error(), Err: err}
	}
	req, err := input.toRequest()
	if err != nil {
		return out, err
	}
	res := h.generator.Generate(ctx, req)
	out.Elapsed = res.Elapsed
	if !res.OK() {
		return out, res.Err
	}

	ext := image.Extension(res.MIMEType)
	name := h.name(input, ext)
	metadata := input.toMetadata()
	metadata["elapsed_ms"] = strconv.FormatInt(res.Elapsed.Milliseconds(), 10)

	art, err := h.uploader.Upload(ctx, store.UploadParams{
		Name:        name,
		Data:        res.Image,
		ContentType: lo.Ternary(res.MIMEType != "", res.MIMEType, "image/png"),
		Metadata:    metadata,
	})
	if err != nil {
		out.Image = res.Image
		return out, &image.Error{Reason: image.ReasonWriteFailed, Detail: fmt.Sprintf("image generated but not saved: %v", err), Err: err}
	}
	out.Location, out.Size = art.Location, art.Size

	if h.latest {
		h.publishLatest(ctx, art, res, ext, metadata)
	}
	return out, nil
}

func (h *Handler) name(input Input, ext string) string {
	if input.Name != "" {
		return input.Name
	}
	return store.FileName(lo.Ternary(input.Prefix != "", input.Prefix, h.prefix), h.now(), ext)
}

func (h *Handler) publishLatest(ctx context.Context, art store.Artifact, res image.Result, ext string, metadata map[string]string) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("handler")

	latest, err := h.uploader.Upload(ctx, store.UploadParams{
		Name:        "latest" + ext,
		Data:        res.Image,
		ContentType: lo.Ternary(res.MIMEType != "", res.MIMEType, "image/png"),
		Metadata:    metadata,
	})
	if err != nil {
		logger.Warn("updating latest alias failed", "error", err)
		return
	}
	if err := h.invalidator.Invalidate(ctx, []string{"/" + art.Key, "/" + latest.Key}); err != nil {
		logger.Warn("invalidating cdn paths failed", "error", err)
	}
}
