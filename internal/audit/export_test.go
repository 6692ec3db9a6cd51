package audit

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"habitping/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	deliveries []models.Delivery
	err        error
}

func (f *fakeSource) ListDeliveries(ctx context.Context, from, to time.Time) ([]models.Delivery, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.deliveries, nil
}

func TestExportWritesWorkbook(t *testing.T) {
	createdAt := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	source := &fakeSource{deliveries: []models.Delivery{
		{
			ID:         1,
			ReminderID: 7,
			HabitName:  "Weekly review",
			Recipient:  "user@example.com",
			Outcome:    "sent",
			SweepID:    "sweep-1",
			CreatedAt:  createdAt,
		},
		{
			ID:         2,
			ReminderID: 8,
			HabitName:  "Morning run",
			Recipient:  "runner@example.com",
			Outcome:    "send_failed",
			Detail:     "mailbox unavailable",
			SweepID:    "sweep-1",
			CreatedAt:  createdAt.Add(time.Second),
		},
	}}

	logger := zerolog.New(io.Discard)
	exporter := NewExporter(source, &logger)

	var buf bytes.Buffer
	err := exporter.Export(context.Background(), createdAt.Add(-time.Hour), createdAt.Add(time.Hour), &buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Deliveries")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two data rows")

	assert.Equal(t, "Habit", rows[0][2])
	assert.Equal(t, "Weekly review", rows[1][2])
	assert.Equal(t, "sent", rows[1][4])
	assert.Equal(t, "send_failed", rows[2][4])
	assert.Equal(t, "mailbox unavailable", rows[2][5])
	assert.Equal(t, "2026-03-02 08:00:00", rows[1][7])
}

func TestExportEmptyLog(t *testing.T) {
	logger := zerolog.New(io.Discard)
	exporter := NewExporter(&fakeSource{}, &logger)

	var buf bytes.Buffer
	err := exporter.Export(context.Background(), time.Now().Add(-time.Hour), time.Now(), &buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Deliveries")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}

func TestFilename(t *testing.T) {
	ts := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "deliveries_2026-08.xlsx", Filename(ts))
}
