package image

import (
	"context"
	"time"
)

// Result is either a generated image or an *Error, never both.
type Result struct {
	Image    []byte
	MIMEType string
	Elapsed  time.Duration
	Err      *Error
}

func (r Result) OK() bool { return r.Err == nil }

// Failure returns the failure as a plain error, nil on success.
func (r Result) Failure() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

type Generator interface {
	Generate(context.Context, Request) Result
}

// Extension picks a file extension for a generated image's mime type.
func Extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
