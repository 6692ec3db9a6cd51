package reminders

import (
	"context"
	"time"

	"habitping/internal/models"
)

// Store provides the persistence operations the sweep loop needs. Record
// creation and editing happen elsewhere in the habit tracker; the sweep
// only reads enabled reminders and writes the last-sent marker.
type Store interface {
	// FetchEnabledReminders returns every reminder with enabled = true.
	FetchEnabledReminders(ctx context.Context) ([]models.Reminder, error)

	// MarkSent records a successful delivery time for one reminder.
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
}

// Transport delivers one formatted notification to a recipient.
type Transport interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// Recorder appends delivery outcomes to the audit log. Recording failures
// are logged and never fail a sweep.
type Recorder interface {
	InsertDelivery(ctx context.Context, d *models.Delivery) error
}

// SweepLock serializes sweeps across process instances. Implementations
// must be safe to Release after a failed TryAcquire.
type SweepLock interface {
	// TryAcquire attempts to take the lock. Returns false when another
	// instance holds it.
	TryAcquire(ctx context.Context) (bool, error)

	// Release gives the lock back if this instance still holds it.
	Release(ctx context.Context) error
}
