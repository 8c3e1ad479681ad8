// Package storage keeps the alert and metric history journal in SQLite.
// The server table itself lives in the spreadsheet record store.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/woozymasta/srvdash/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the journal at dbPath, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InsertAlert stores a and returns its row ID.
func (r *Repository) InsertAlert(a models.Alert) (int64, error) {
	res, err := r.db.Exec(
		`INSERT INTO alerts (created_at, level, server_id, message) VALUES (?, ?, ?, ?)`,
		a.Time.UnixMilli(), string(a.Level), a.ServerID, a.Message,
	)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// RecentAlerts returns the last limit alerts, oldest first.
func (r *Repository) RecentAlerts(limit int) ([]models.Alert, error) {
	rows, err := r.db.Query(`
		SELECT id, created_at, level, server_id, message FROM (
			SELECT id, created_at, level, server_id, message
			FROM alerts
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Alert
	for rows.Next() {
		var (
			a     models.Alert
			ms    int64
			level string
		)
		if err := rows.Scan(&a.ID, &ms, &level, &a.ServerID, &a.Message); err != nil {
			return nil, err
		}
		a.Time = time.UnixMilli(ms)
		a.Level = models.AlertLevel(level)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// DeleteAlerts removes every stored alert.
func (r *Repository) DeleteAlerts() error {
	_, err := r.db.Exec(`DELETE FROM alerts`)
	return err
}

// InsertSnapshots stores a batch of metric points in a single transaction.
func (r *Repository) InsertSnapshots(batch []models.Snapshot) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshots (taken_at, server_id, status, cpu, ram, disk, score, net_in, net_out)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range batch {
		if _, err := stmt.Exec(
			s.Time.UnixMilli(), s.ServerID, string(s.Status),
			s.CPU, s.RAM, s.Disk, s.Score, s.NetIn, s.NetOut,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert snapshot for %s: %w", s.ServerID, err)
		}
	}

	return tx.Commit()
}

// History returns the last limit snapshots of one server, oldest first.
func (r *Repository) History(serverID string, limit int) ([]models.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT taken_at, server_id, status, cpu, ram, disk, score, net_in, net_out FROM (
			SELECT id, taken_at, server_id, status, cpu, ram, disk, score, net_in, net_out
			FROM snapshots
			WHERE server_id = ?
			ORDER BY taken_at DESC, id DESC
			LIMIT ?
		) ORDER BY taken_at ASC, id ASC
	`, serverID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Snapshot
	for rows.Next() {
		var (
			s      models.Snapshot
			ms     int64
			status string
		)
		if err := rows.Scan(&ms, &s.ServerID, &status, &s.CPU, &s.RAM, &s.Disk, &s.Score, &s.NetIn, &s.NetOut); err != nil {
			return nil, err
		}
		s.Time = time.UnixMilli(ms)
		s.Status = models.Status(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Prune removes alerts and snapshots older than before and reports how many rows went.
func (r *Repository) Prune(before time.Time) (int64, error) {
	cutoff := before.UnixMilli()

	var total int64
	for _, query := range []string{
		`DELETE FROM snapshots WHERE taken_at < ?`,
		`DELETE FROM alerts WHERE created_at < ?`,
	} {
		res, err := r.db.Exec(query, cutoff)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}

	return total, nil
}
