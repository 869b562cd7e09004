// Package transport delivers queued event payloads to the events API and
// classifies each response into a queue.Outcome.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/queue"
)

const maxResponseBody = 1024

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Err        error
	Response   string
	Latency    time.Duration
}

// Sender posts payloads to a fixed events URL.
type Sender struct {
	url       string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

// NewSender creates a sender with the given HTTP timeout. A nil client
// selects a default one.
func NewSender(url, userAgent string, timeout time.Duration, client *http.Client, logger *zap.Logger) *Sender {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{url: url, userAgent: userAgent, client: client, logger: logger}
}

// Consume implements queue.Consumer.
func (s *Sender) Consume(ctx context.Context, payload []byte, eventID string) queue.Outcome {
	res := s.Send(ctx, payload)
	outcome := Classify(res)
	if ctx.Err() != nil && outcome != queue.Consumed {
		outcome = queue.NotConsumed
	}

	fields := []zap.Field{
		zap.String("event_id", eventID),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", res.Latency),
		zap.Stringer("outcome", outcome),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	if outcome == queue.Consumed {
		s.logger.Info("event delivered", fields...)
	} else {
		s.logger.Warn("event delivery failed", append(fields, zap.String("response", res.Response))...)
	}
	return outcome
}

// Send performs one POST of payload.
func (s *Sender) Send(ctx context.Context, payload []byte) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return Result{Err: errors.Wrap(err, "create request")}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Result{Err: err, Latency: latency}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return Result{
		StatusCode: resp.StatusCode,
		Err:        readErr,
		Response:   string(body),
		Latency:    latency,
	}
}

// Classify maps a delivery result to a queue outcome.
//
//   - 2xx → Consumed
//   - 400 and other 4xx → BadEntry (the payload will never be accepted)
//   - 403, 429 → BackoffNotConsumed (throttled)
//   - 5xx → BackoffBadEntry (may be the payload, give it a bounded number of tries)
//   - certificate verification failure → StopAll
//   - cancelled request → NotConsumed (the destination is not at fault)
//   - any other transport error → BackoffNotConsumed
func Classify(res Result) queue.Outcome {
	if res.StatusCode == 0 {
		if isCertificateError(res.Err) {
			return queue.StopAll
		}
		if errors.Is(res.Err, context.Canceled) {
			return queue.NotConsumed
		}
		return queue.BackoffNotConsumed
	}

	code := res.StatusCode
	switch {
	case code >= 200 && code < 300:
		return queue.Consumed
	case code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return queue.BackoffNotConsumed
	case code >= 400 && code < 500:
		return queue.BadEntry
	case code >= 500:
		return queue.BackoffBadEntry
	default:
		return queue.NotConsumed
	}
}

func isCertificateError(err error) bool {
	if err == nil {
		return false
	}
	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert)
}
