package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"regulie/therapy-app/internal/metrics"

	"github.com/resend/resend-go/v2"
	"github.com/sony/gobreaker"
)

var (
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("email provider unavailable")
	// ErrInvalidRecipient is returned for addresses that are not sent to the provider at all.
	ErrInvalidRecipient = errors.New("invalid recipient address")
)

// RejectedError is a provider response that blames the message itself, such as
// an address Resend refuses. It does not count against the circuit breaker.
type RejectedError struct {
	Status int
	Err    error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by provider (status %d): %v", e.Status, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

type statusKey struct{}

// statusTransport stores the provider's response status in the *int carried by
// the request context; the Resend SDK does not expose it on errors.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}

// rejectsMessage reports statuses caused by the message rather than the provider or our credentials.
func rejectsMessage(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnprocessableEntity
}

// emailsAPI is the part of the Resend client used here.
type emailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type resendSender struct {
	emails emailsAPI
	from   string
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewResendSender creates a Sender backed by the Resend API.
func NewResendSender(apiKey, from string, logger *slog.Logger) Sender {
	httpClient := &http.Client{
		Timeout:   15 * time.Second,
		Transport: statusTransport{base: http.DefaultTransport},
	}
	return newResendSender(resend.NewCustomClient(httpClient, apiKey).Emails, from, logger)
}

func newResendSender(emails emailsAPI, from string, logger *slog.Logger) *resendSender {
	s := &resendSender{emails: emails, from: from, logger: logger}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "resend",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var rejected *RejectedError
			return err == nil || errors.As(err, &rejected) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("email circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return s
}

func (s *resendSender) Send(ctx context.Context, msg Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		metrics.EmailsTotal.WithLabelValues(msg.Template, "invalid").Inc()
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		status := new(int)
		resp, err := s.emails.SendWithContext(context.WithValue(ctx, statusKey{}, status), req)
		if err != nil && rejectsMessage(*status) {
			return resp, &RejectedError{Status: *status, Err: err}
		}
		return resp, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.EmailsTotal.WithLabelValues(msg.Template, "rejected").Inc()
		return ErrUnavailable
	}
	if err != nil {
		metrics.EmailsTotal.WithLabelValues(msg.Template, "error").Inc()
		return fmt.Errorf("send %s email: %w", msg.Template, err)
	}
	metrics.EmailsTotal.WithLabelValues(msg.Template, "sent").Inc()
	s.logger.DebugContext(ctx, "email sent", "template", msg.Template)
	return nil
}
