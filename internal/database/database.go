package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"habitping/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection used for reminder records and the
// delivery audit log.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens (and if needed creates) the database at path.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// _loc=auto keeps stored timestamps in the process-local zone, which
	// is what the dedup date comparison evaluates against.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_loc=auto"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		habit_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		recipient TEXT NOT NULL,
		time_of_day TEXT NOT NULL,
		frequency TEXT NOT NULL,
		day_of_week TEXT NOT NULL DEFAULT '',
		days_of_week TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		last_sent_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_enabled ON reminders(enabled);

	CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reminder_id INTEGER NOT NULL,
		habit_name TEXT NOT NULL,
		recipient TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		sweep_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

const reminderColumns = `id, habit_name, description, recipient, time_of_day,
	frequency, day_of_week, days_of_week, enabled, last_sent_at, created_at, updated_at`

func scanReminder(row interface{ Scan(...interface{}) error }) (models.Reminder, error) {
	var r models.Reminder
	var lastSent sql.NullTime
	err := row.Scan(&r.ID, &r.HabitName, &r.Description, &r.Recipient,
		&r.TimeOfDay, &r.Frequency, &r.DayOfWeek, &r.DaysOfWeek,
		&r.Enabled, &lastSent, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if lastSent.Valid {
		t := lastSent.Time
		r.LastSentAt = &t
	}
	return r, nil
}

// FetchEnabledReminders returns every reminder with enabled = true.
func (db *DB) FetchEnabledReminders(ctx context.Context) ([]models.Reminder, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("fetch enabled reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// MarkSent records a successful delivery time for one reminder.
func (db *DB) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE reminders SET last_sent_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sentAt, id)
	if err != nil {
		return fmt.Errorf("mark sent %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark sent %d: reminder not found", id)
	}
	return nil
}

// CreateReminder inserts a reminder and fills in its id.
func (db *DB) CreateReminder(ctx context.Context, r *models.Reminder) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO reminders (habit_name, description, recipient, time_of_day,
			frequency, day_of_week, days_of_week, enabled, last_sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.HabitName, r.Description, r.Recipient, r.TimeOfDay,
		r.Frequency, r.DayOfWeek, r.DaysOfWeek, r.Enabled, r.LastSentAt)
	if err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// GetReminder returns one reminder by id, or sql.ErrNoRows.
func (db *DB) GetReminder(ctx context.Context, id int64) (models.Reminder, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	return scanReminder(row)
}

// UpdateReminder rewrites the editable fields of an existing reminder.
func (db *DB) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	_, err := db.ExecContext(ctx,
		`UPDATE reminders SET habit_name = ?, description = ?, recipient = ?,
			time_of_day = ?, frequency = ?, day_of_week = ?, days_of_week = ?,
			enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		r.HabitName, r.Description, r.Recipient, r.TimeOfDay,
		r.Frequency, r.DayOfWeek, r.DaysOfWeek, r.Enabled, r.ID)
	if err != nil {
		return fmt.Errorf("update reminder %d: %w", r.ID, err)
	}
	return nil
}

// DeleteReminder removes a reminder row.
func (db *DB) DeleteReminder(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	return nil
}

// InsertDelivery appends one row to the delivery audit log.
func (db *DB) InsertDelivery(ctx context.Context, d *models.Delivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO deliveries (reminder_id, habit_name, recipient, outcome, detail, sweep_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ReminderID, d.HabitName, d.Recipient, d.Outcome, d.Detail, d.SweepID, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

// ListDeliveries returns audit rows with created_at in [from, to), oldest first.
func (db *DB) ListDeliveries(ctx context.Context, from, to time.Time) ([]models.Delivery, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, reminder_id, habit_name, recipient, outcome, detail, sweep_id, created_at
		FROM deliveries WHERE created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.ReminderID, &d.HabitName, &d.Recipient,
			&d.Outcome, &d.Detail, &d.SweepID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
