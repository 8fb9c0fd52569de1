package prompt

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/iProgramme/AI-shouban/internal/image"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var ErrNoPresets = errors.New("no preset prompts configured")

// Preset is a stored prompt, optionally pinned to an aspect ratio with an
// "aspect|prompt" entry such as "16:9|a lighthouse at dusk".
type Preset struct {
	AspectRatio image.AspectRatio
	Prompt      string
}

func ParsePreset(s string) Preset {
	if before, after, ok := strings.Cut(s, "|"); ok && image.AspectRatio(strings.TrimSpace(before)).Valid() {
		return Preset{AspectRatio: image.AspectRatio(strings.TrimSpace(before)), Prompt: strings.TrimSpace(after)}
	}
	return Preset{Prompt: strings.TrimSpace(s)}
}

type Randomizer struct {
	presets []Preset
	rnd     *rand.Rand
}

func New(entries []string, rnd *rand.Rand) *Randomizer {
	presets := lo.Filter(lo.Map(entries, func(e string, _ int) Preset { return ParsePreset(e) }),
		func(p Preset, _ int) bool { return p.Prompt != "" })
	return &Randomizer{presets, rnd}
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "prompts")
	return New(prompts, rand.New(rand.NewSource(time.Now().UTC().Unix()))), nil
}

func (r *Randomizer) Randomize(ctx context.Context) (Preset, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("randomizer")
	if len(r.presets) == 0 {
		return Preset{}, ErrNoPresets
	}
	p := r.presets[r.rnd.Intn(len(r.presets))]
	logger.Info("picked preset prompt", "prompt", p.Prompt, "aspect_ratio", p.AspectRatio)
	return p, nil
}
