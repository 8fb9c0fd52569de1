package image

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindTransport      Kind = "transport"
	KindResponseFormat Kind = "response_format"
	KindDecode         Kind = "decode"
	KindIO             Kind = "io"
)

type Reason string

const (
	ReasonInvalidAspectRatio Reason = "invalid_aspect_ratio"
	ReasonInvalidResolution  Reason = "invalid_resolution"
	ReasonEmptyPrompt        Reason = "empty_prompt"
	ReasonSourceNotFound     Reason = "source_not_found"
	ReasonSourceTooLarge     Reason = "source_too_large"
	ReasonInvalidName        Reason = "invalid_name"

	ReasonHTTPError        Reason = "http_error"
	ReasonTimeout          Reason = "timeout"
	ReasonNetwork          Reason = "network_error"
	ReasonUnknownTransport Reason = "unknown_transport_error"
	ReasonCanceled         Reason = "canceled"
	ReasonProviderError    Reason = "provider_error"

	ReasonMalformedResponse Reason = "malformed_response"
	ReasonNoImageData       Reason = "no_image_data"

	ReasonDecode Reason = "decode_error"

	ReasonWriteFailed Reason = "write_failed"
)

func (r Reason) Kind() Kind {
	switch r {
	case ReasonInvalidAspectRatio, ReasonInvalidResolution, ReasonEmptyPrompt,
		ReasonSourceNotFound, ReasonSourceTooLarge, ReasonInvalidName:
		return KindValidation
	case ReasonMalformedResponse, ReasonNoImageData:
		return KindResponseFormat
	case ReasonDecode:
		return KindDecode
	case ReasonWriteFailed:
		return KindIO
	default:
		return KindTransport
	}
}

// Error is the failure half of a Result. Raw holds the response body when
// the service answered, so callers can show what came back.
type Error struct {
	Reason     Reason
	Detail     string
	StatusCode int
	Budget     time.Duration
	Raw        json.RawMessage
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Reason == ReasonHTTPError:
		return fmt.Sprintf("%s: status %d: %s", e.Reason, e.StatusCode, e.Detail)
	case e.Reason == ReasonTimeout:
		return fmt.Sprintf("%s: no response within %s", e.Reason, e.Budget)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	default:
		return string(e.Reason)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() Kind { return e.Reason.Kind() }

// ReasonOf returns the reason of the first *Error in err's chain, or "".
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind() == kind
}
