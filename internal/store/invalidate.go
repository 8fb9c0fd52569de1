package store

import (
	"context"
)

type Invalidator interface {
	Invalidate(context.Context, []string) error
}

// NopInvalidator is used when no CDN sits in front of the artifacts.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context, []string) error { return nil }
