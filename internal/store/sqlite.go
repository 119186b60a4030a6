package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const reminderCols = `id, text, trigger_type, time_trigger, time_of_day,
	interval, interval_unit, cron_spec,
	address, lat, lng, radius, trigger_on,
	recurring, vibrate, sound`

func (s *sqliteStore) List(ctx context.Context) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reminderCols+` FROM reminders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, id string) (reminder.Reminder, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderCols+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Reminder{}, false, nil
	}
	if err != nil {
		return reminder.Reminder{}, false, err
	}
	return r, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, r reminder.Reminder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(`+reminderCols+`)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   text=excluded.text, trigger_type=excluded.trigger_type,
		   time_trigger=excluded.time_trigger, time_of_day=excluded.time_of_day,
		   interval=excluded.interval, interval_unit=excluded.interval_unit,
		   cron_spec=excluded.cron_spec, address=excluded.address,
		   lat=excluded.lat, lng=excluded.lng, radius=excluded.radius,
		   trigger_on=excluded.trigger_on, recurring=excluded.recurring,
		   vibrate=excluded.vibrate, sound=excluded.sound`,
		reminderArgs(r)...,
	)
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) ReplaceAll(ctx context.Context, rs []reminder.Reminder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return err
	}
	for _, r := range rs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reminders(`+reminderCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			reminderArgs(r)...,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func reminderArgs(r reminder.Reminder) []any {
	return []any{
		r.ID, r.Text, string(r.Trigger), string(r.TimeTrigger), r.TimeOfDay,
		r.Interval, string(r.Unit), r.CronSpec,
		r.Address, r.Lat, r.Lng, r.Radius, string(r.On),
		boolInt(r.Recurring), boolInt(r.Vibrate), r.Sound,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (reminder.Reminder, error) {
	var (
		r                  reminder.Reminder
		trig, tt, unit, on string
		recurring, vibrate int
	)
	err := row.Scan(
		&r.ID, &r.Text, &trig, &tt, &r.TimeOfDay,
		&r.Interval, &unit, &r.CronSpec,
		&r.Address, &r.Lat, &r.Lng, &r.Radius, &on,
		&recurring, &vibrate, &r.Sound,
	)
	if err != nil {
		return reminder.Reminder{}, err
	}
	r.Trigger = reminder.TriggerType(trig)
	r.TimeTrigger = reminder.TimeTriggerType(tt)
	r.Unit = reminder.IntervalUnit(unit)
	r.On = reminder.LocationTrigger(on)
	r.Recurring = recurring != 0
	r.Vibrate = vibrate != 0
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
