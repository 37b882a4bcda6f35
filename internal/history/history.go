// Package history records polled vehicle telemetry and charge
// sessions in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/rs/zerolog"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at    TIMESTAMP NOT NULL,
	vin            TEXT NOT NULL,
	soc_percent    REAL NOT NULL,
	range_km       INTEGER NOT NULL,
	charging       INTEGER NOT NULL,
	power_w        REAL NOT NULL,
	odometer_km    INTEGER NOT NULL,
	at_home        INTEGER NOT NULL,
	exterior_temp  INTEGER,
	interior_temp  INTEGER,
	aux_voltage    REAL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_vin_time ON snapshots(vin, recorded_at);

CREATE TABLE IF NOT EXISTS charge_sessions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	vin         TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	ended_at    TIMESTAMP,
	start_soc   REAL NOT NULL,
	end_soc     REAL,
	max_power_w REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_vin ON charge_sessions(vin, started_at);
`

// Snapshot is one polled telemetry reading.
type Snapshot struct {
	RecordedAt   time.Time
	VIN          string
	SoCPercent   float64
	RangeKm      int
	Charging     bool
	PowerW       float64
	OdometerKm   int
	AtHome       bool
	ExteriorTemp *int
	InteriorTemp *int
	AuxVoltage   *float64
}

// Session is a completed or in-progress charge session.
type Session struct {
	ID        int64
	VIN       string
	StartedAt time.Time
	EndedAt   *time.Time
	StartSoC  float64
	EndSoC    *float64
	MaxPowerW float64
}

// Store wraps the SQLite connection.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or migrates the history database.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	if err := stampVersion(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(path, 0o600)

	return &Store{
		db:  db,
		log: log.With().Str("component", "history").Logger(),
	}, nil
}

func stampVersion(db *sql.DB) error {
	var version int
	err := db.QueryRow(`SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec(`INSERT INTO schema_info (version) VALUES (?)`, schemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("history db schema version %d is newer than supported %d", version, schemaVersion)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Record stores a snapshot and maintains the charge session ledger:
// a charging=true reading opens a session if none is active, a
// charging=false reading closes the active one.
func (s *Store) Record(ctx context.Context, snap Snapshot) error {
	if snap.RecordedAt.IsZero() {
		snap.RecordedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
			(recorded_at, vin, soc_percent, range_km, charging, power_w,
			 odometer_km, at_home, exterior_temp, interior_temp, aux_voltage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RecordedAt, snap.VIN, snap.SoCPercent, snap.RangeKm, snap.Charging,
		snap.PowerW, snap.OdometerKm, snap.AtHome,
		snap.ExteriorTemp, snap.InteriorTemp, snap.AuxVoltage)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if err := s.updateSession(ctx, tx, snap); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) updateSession(ctx context.Context, tx *sql.Tx, snap Snapshot) error {
	var sessionID int64
	var maxPower float64
	err := tx.QueryRowContext(ctx, `
		SELECT id, max_power_w FROM charge_sessions
		WHERE vin = ? AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`, snap.VIN).Scan(&sessionID, &maxPower)
	active := err == nil
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("find active session: %w", err)
	}

	switch {
	case snap.Charging && !active:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO charge_sessions (vin, started_at, start_soc, max_power_w)
			VALUES (?, ?, ?, ?)`,
			snap.VIN, snap.RecordedAt, snap.SoCPercent, snap.PowerW)
		if err != nil {
			return fmt.Errorf("open charge session: %w", err)
		}
		s.log.Info().Str("vin", snap.VIN).Float64("soc", snap.SoCPercent).Msg("charge session started")

	case snap.Charging && active:
		if snap.PowerW > maxPower {
			if _, err := tx.ExecContext(ctx,
				`UPDATE charge_sessions SET max_power_w = ? WHERE id = ?`,
				snap.PowerW, sessionID); err != nil {
				return fmt.Errorf("update session power: %w", err)
			}
		}

	case !snap.Charging && active:
		if _, err := tx.ExecContext(ctx, `
			UPDATE charge_sessions SET ended_at = ?, end_soc = ? WHERE id = ?`,
			snap.RecordedAt, snap.SoCPercent, sessionID); err != nil {
			return fmt.Errorf("close charge session: %w", err)
		}
		s.log.Info().Str("vin", snap.VIN).Float64("soc", snap.SoCPercent).Msg("charge session ended")
	}
	return nil
}

// RecentSnapshots returns up to limit snapshots for a VIN, newest first.
func (s *Store) RecentSnapshots(ctx context.Context, vin string, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, vin, soc_percent, range_km, charging, power_w,
		       odometer_km, at_home, exterior_temp, interior_temp, aux_voltage
		FROM snapshots WHERE vin = ?
		ORDER BY recorded_at DESC LIMIT ?`, vin, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.RecordedAt, &snap.VIN, &snap.SoCPercent, &snap.RangeKm,
			&snap.Charging, &snap.PowerW, &snap.OdometerKm, &snap.AtHome,
			&snap.ExteriorTemp, &snap.InteriorTemp, &snap.AuxVoltage); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Sessions returns up to limit charge sessions for a VIN, newest first.
func (s *Store) Sessions(ctx context.Context, vin string, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vin, started_at, ended_at, start_soc, end_soc, max_power_w
		FROM charge_sessions WHERE vin = ?
		ORDER BY started_at DESC LIMIT ?`, vin, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.VIN, &sess.StartedAt, &sess.EndedAt,
			&sess.StartSoC, &sess.EndSoC, &sess.MaxPowerW); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
