package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"habitping/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// DeliverySource provides delivery-log rows for export.
type DeliverySource interface {
	ListDeliveries(ctx context.Context, from, to time.Time) ([]models.Delivery, error)
}

// Exporter writes the delivery audit log as an Excel workbook.
type Exporter struct {
	source DeliverySource
	logger *zerolog.Logger
}

// NewExporter creates an exporter over the given source.
func NewExporter(source DeliverySource, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

var exportColumns = []string{
	"ID", "Reminder ID", "Habit", "Recipient", "Outcome", "Detail", "Sweep ID", "Timestamp",
}

// Export writes deliveries with timestamps in [from, to) to w.
func (e *Exporter) Export(ctx context.Context, from, to time.Time, w io.Writer) error {
	deliveries, err := e.source.ListDeliveries(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load deliveries: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Deliveries"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	// Bold header row.
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, d := range deliveries {
		values := []interface{}{
			d.ID,
			d.ReminderID,
			d.HabitName,
			d.Recipient,
			d.Outcome,
			d.Detail,
			d.SweepID,
			d.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for j, val := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	e.logger.Info().
		Int("rows", len(deliveries)).
		Time("from", from).
		Time("to", to).
		Msg("delivery log exported")

	return f.Write(w)
}

// Filename returns the export filename for the month containing t, like
// "deliveries_2026-08.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("deliveries_%s.xlsx", t.Format("2006-01"))
}
