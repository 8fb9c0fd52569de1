package prompt

import (
	"context"
	"math/rand"
	"testing"

	"github.com/iProgramme/AI-shouban/internal/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreset(t *testing.T) {
	assert.Equal(t, Preset{AspectRatio: image.AspectRatio16x9, Prompt: "a lighthouse"}, ParsePreset("16:9 | a lighthouse"))
	assert.Equal(t, Preset{Prompt: "a cabin in the woods"}, ParsePreset("a cabin in the woods"))
	assert.Equal(t, Preset{Prompt: "7:3|odd ratio"}, ParsePreset("7:3|odd ratio"))
}

func TestRandomize(t *testing.T) {
	r := New([]string{"", "16:9|city at night", "  ", "a cat"}, rand.New(rand.NewSource(42)))

	seen := map[string]bool{}
	for n := 0; n < 50; n++ {
		p, err := r.Randomize(context.Background())
		require.NoError(t, err)
		seen[p.Prompt] = true
	}
	assert.Equal(t, map[string]bool{"city at night": true, "a cat": true}, seen)
}

func TestRandomizeEmpty(t *testing.T) {
	_, err := New(nil, rand.New(rand.NewSource(1))).Randomize(context.Background())
	assert.ErrorIs(t, err, ErrNoPresets)
}
