package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/iProgramme/AI-shouban/internal/log"
)

const maxErrorBody = 4 << 10

type Transport struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Timeouts Timeouts
}

// Post sends one request and blocks until the response body is read, the
// resolution's time budget runs out, or ctx is done.
func (t *Transport) Post(ctx context.Context, body []byte, res Resolution) ([]byte, error) {
	budget := t.Timeouts.For(res)
	logger := log.FromContextOrDiscard(ctx).WithGroup("transport").With("endpoint", t.Endpoint, "budget", budget.String())

	reqCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Reason: ReasonUnknownTransport, Detail: "building request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	logger.Info("posting generation request", "bytes", len(body))
	resp, err := t.client().Do(req)
	if err != nil {
		return nil, classify(ctx, reqCtx, err, budget)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, reqCtx, err, budget)
	}
	logger.Info("received response", "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := data
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody]
		}
		return nil, &Error{
			Reason:     ReasonHTTPError,
			StatusCode: resp.StatusCode,
			Detail:     string(detail),
			Raw:        rawJSON(data),
		}
	}
	return data, nil
}

func (t *Transport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

func classify(parent, reqCtx context.Context, err error, budget time.Duration) error {
	if parent.Err() != nil {
		return &Error{Reason: ReasonCanceled, Detail: "request canceled", Err: err}
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Reason: ReasonTimeout, Budget: budget, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Reason: ReasonTimeout, Budget: budget, Err: err}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &Error{Reason: ReasonNetwork, Detail: fmt.Sprintf("connection failed: %v", err), Err: err}
	}
	return &Error{Reason: ReasonUnknownTransport, Detail: err.Error(), Err: err}
}
