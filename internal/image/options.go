package image

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type AspectRatio string

const (
	AspectRatio21x9 AspectRatio = "21:9"
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio3x2  AspectRatio = "3:2"
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio3x4  AspectRatio = "3:4"
	AspectRatio2x3  AspectRatio = "2:3"
	AspectRatio5x4  AspectRatio = "5:4"
	AspectRatio4x5  AspectRatio = "4:5"
)

// SupportedAspectRatios is the allow-list accepted by the service.
var SupportedAspectRatios = []AspectRatio{
	AspectRatio21x9, AspectRatio16x9, AspectRatio4x3, AspectRatio3x2, AspectRatio1x1,
	AspectRatio9x16, AspectRatio3x4, AspectRatio2x3, AspectRatio5x4, AspectRatio4x5,
}

func (a AspectRatio) Valid() bool {
	return lo.Contains(SupportedAspectRatios, a)
}

type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

var SupportedResolutions = []Resolution{Resolution1K, Resolution2K, Resolution4K}

func (r Resolution) Valid() bool {
	return lo.Contains(SupportedResolutions, r)
}

// ParseResolution accepts "2k" as well as "2K". The empty string is returned unchanged.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToUpper(strings.TrimSpace(s)))
	if r != "" && !r.Valid() {
		return "", fmt.Errorf("unsupported resolution %q", s)
	}
	return r, nil
}

// Timeouts maps a resolution tier to the time budget of one request.
// A request without a resolution gets the 1K budget, the service's default size.
type Timeouts map[Resolution]time.Duration

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Resolution1K: 180 * time.Second,
		Resolution2K: 300 * time.Second,
		Resolution4K: 360 * time.Second,
	}
}

func (t Timeouts) For(r Resolution) time.Duration {
	if r == "" {
		r = Resolution1K
	}
	if d, ok := t[r]; ok && d > 0 {
		return d
	}
	return DefaultTimeouts()[r]
}
