package reminders

import (
	"context"
	"fmt"

	"habitping/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SendError describes a failed delivery attempt.
type SendError struct {
	ReminderID int64
	Recipient  string
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s for reminder %d: %v", e.Recipient, e.ReminderID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// DispatcherConfig holds the outbound rate limit settings.
type DispatcherConfig struct {
	// RatePerSecond is the sustained send rate across all reminders.
	RatePerSecond float64
	// Burst is the rate limiter bucket size.
	Burst int
}

// DefaultDispatcherConfig returns conservative transport-friendly limits.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		RatePerSecond: 5,
		Burst:         10,
	}
}

// Dispatcher formats notification payloads and hands them to the transport.
// Exactly one outbound attempt is made per Dispatch call; retrying is left
// to the next naturally due occurrence.
type Dispatcher struct {
	transport Transport
	limiter   *rate.Limiter
	logger    *zerolog.Logger
	metrics   *Metrics
}

// NewDispatcher creates a dispatcher over the given transport.
func NewDispatcher(cfg DispatcherConfig, transport Transport, metrics *Metrics, logger *zerolog.Logger) *Dispatcher {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultDispatcherConfig().RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultDispatcherConfig().Burst
	}
	return &Dispatcher{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:    logger,
		metrics:   metrics,
	}
}

// Dispatch sends one notification for the reminder. A nil return is the
// acknowledgement that permits updating the last-sent marker.
func (d *Dispatcher) Dispatch(ctx context.Context, r models.Reminder) error {
	if d.limiter.Tokens() < 1 && d.metrics != nil {
		d.metrics.IncRateLimitWaits()
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return &SendError{ReminderID: r.ID, Recipient: r.Recipient, Err: err}
	}

	subject, body := formatNotification(r)
	if err := d.transport.Deliver(ctx, r.Recipient, subject, body); err != nil {
		return &SendError{ReminderID: r.ID, Recipient: r.Recipient, Err: err}
	}

	d.logger.Info().
		Int64("reminder_id", r.ID).
		Str("recipient", r.Recipient).
		Str("habit", r.HabitName).
		Msg("reminder delivered")
	return nil
}

func formatNotification(r models.Reminder) (subject, body string) {
	subject = "Reminder: " + r.HabitName
	body = "This is a friendly reminder to complete your habit: " + r.HabitName
	if r.Description != "" {
		body += "\n" + r.Description
	}
	return subject, body
}
