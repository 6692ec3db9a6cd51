package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"habitping/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome is the terminal state of one reminder within one sweep.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeNotDue      Outcome = "skipped_not_due"
	OutcomeAlreadySent Outcome = "skipped_already_sent"
	OutcomeSendFailed  Outcome = "send_failed"
)

// Summary aggregates the per-reminder outcomes of one sweep.
type Summary struct {
	SweepID            string        `json:"sweep_id"`
	Total              int           `json:"total"`
	Sent               int           `json:"sent"`
	SkippedNotDue      int           `json:"skipped_not_due"`
	SkippedAlreadySent int           `json:"skipped_already_sent"`
	Failed             int           `json:"failed"`
	Duration           time.Duration `json:"duration"`
}

// Skipped is the merged skip tally: not due, already sent, and failed
// sends all count as skipped. Failures stay distinguishable in logs and
// in the Failed field.
func (s Summary) Skipped() int {
	return s.SkippedNotDue + s.SkippedAlreadySent + s.Failed
}

// SweeperConfig holds settings for one sweep run.
type SweeperConfig struct {
	// MaxConcurrentSends limits parallel dispatches. Default: 10.
	MaxConcurrentSends int
	// SendTimeout bounds one dispatch call. Default: 30s.
	SendTimeout time.Duration
	// Now is the time source; defaults to time.Now. Injected in tests.
	Now func() time.Time
}

// Sweeper runs one evaluation pass over all enabled reminders.
type Sweeper struct {
	config     SweeperConfig
	store      Store
	dispatcher *Dispatcher
	recorder   Recorder
	metrics    *Metrics
	logger     *zerolog.Logger
}

// NewSweeper creates a sweeper. recorder and metrics may be nil.
func NewSweeper(
	config SweeperConfig,
	store Store,
	dispatcher *Dispatcher,
	recorder Recorder,
	metrics *Metrics,
	logger *zerolog.Logger,
) *Sweeper {
	if config.MaxConcurrentSends <= 0 {
		config.MaxConcurrentSends = 10
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 30 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Sweeper{
		config:     config,
		store:      store,
		dispatcher: dispatcher,
		recorder:   recorder,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run executes one sweep: fetch enabled reminders, then for each one
// evaluate due-ness, apply the once-per-day dedup gate, dispatch, and
// persist the last-sent marker on success. Per-reminder failures are
// isolated; only a fetch failure aborts the sweep.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	now := s.config.Now()

	summary := Summary{SweepID: uuid.New().String()}
	log := s.logger.With().Str("sweep_id", summary.SweepID).Logger()

	records, err := s.store.FetchEnabledReminders(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncSweep("fetch_failed")
		}
		log.Error().Err(err).Msg("sweep aborted: cannot fetch reminders")
		return summary, fmt.Errorf("fetch enabled reminders: %w", err)
	}

	summary.Total = len(records)
	if s.metrics != nil {
		s.metrics.SetChecked(len(records))
	}

	sem := make(chan struct{}, s.config.MaxConcurrentSends)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range records {
		r := records[i]

		if !IsDue(r, now) {
			if !r.Frequency.Valid() {
				log.Warn().
					Int64("reminder_id", r.ID).
					Str("frequency", string(r.Frequency)).
					Msg("unrecognized frequency, treating as not due")
			}
			summary.SkippedNotDue++
			s.countOutcome(OutcomeNotDue)
			continue
		}

		if SentToday(r, now) {
			log.Debug().
				Int64("reminder_id", r.ID).
				Time("last_sent_at", *r.LastSentAt).
				Msg("already sent today, skipping")
			summary.SkippedAlreadySent++
			s.countOutcome(OutcomeAlreadySent)
			continue
		}

		wg.Add(1)
		sem <- struct{}{} // acquire

		go func(r models.Reminder) {
			defer wg.Done()
			defer func() { <-sem }() // release

			outcome, detail := s.processDue(ctx, r, now, &log)

			mu.Lock()
			switch outcome {
			case OutcomeSent:
				summary.Sent++
			default:
				summary.Failed++
			}
			mu.Unlock()

			s.countOutcome(outcome)
			s.record(ctx, r, outcome, detail, summary.SweepID, &log)
		}(r)
	}

	wg.Wait()

	summary.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.IncSweep("ok")
		s.metrics.ObserveSweepDuration(summary.Duration.Seconds())
	}

	log.Info().
		Int("total", summary.Total).
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped()).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("sweep completed")

	return summary, nil
}

// processDue dispatches one due, not-yet-sent reminder and persists the
// marker on success. The marker write is the last action and only happens
// after the transport acknowledged the send.
func (s *Sweeper) processDue(ctx context.Context, r models.Reminder, now time.Time, log *zerolog.Logger) (Outcome, string) {
	sendCtx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	defer cancel()

	if err := s.dispatcher.Dispatch(sendCtx, r); err != nil {
		log.Error().Err(err).
			Int64("reminder_id", r.ID).
			Str("recipient", r.Recipient).
			Msg("dispatch failed, marker left unchanged")
		return OutcomeSendFailed, err.Error()
	}

	if err := s.store.MarkSent(ctx, r.ID, now); err != nil {
		// The notification went out but the marker was not updated, so the
		// reminder may be re-sent today. Accepted at-least-once-per-day risk.
		log.Error().Err(err).
			Int64("reminder_id", r.ID).
			Msg("sent but failed to persist last-sent marker")
		return OutcomeSent, "marker write failed: " + err.Error()
	}

	return OutcomeSent, ""
}

func (s *Sweeper) countOutcome(o Outcome) {
	if s.metrics != nil {
		s.metrics.IncOutcome(o)
	}
}

// record appends dispatch attempts to the delivery audit log. Evaluation
// skips are not recorded; they would add a row per reminder per minute.
func (s *Sweeper) record(ctx context.Context, r models.Reminder, outcome Outcome, detail, sweepID string, log *zerolog.Logger) {
	if s.recorder == nil {
		return
	}
	d := &models.Delivery{
		ReminderID: r.ID,
		HabitName:  r.HabitName,
		Recipient:  r.Recipient,
		Outcome:    string(outcome),
		Detail:     detail,
		SweepID:    sweepID,
	}
	if err := s.recorder.InsertDelivery(ctx, d); err != nil {
		log.Error().Err(err).Int64("reminder_id", r.ID).Msg("failed to record delivery")
	}
}
