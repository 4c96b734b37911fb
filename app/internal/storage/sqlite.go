package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pingit/app/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the artifacts in one SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and creates the schema
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serializes the probe loop and the speedtest
	// scheduler, and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS store_meta (
  artifact TEXT PRIMARY KEY,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS window_stats (
  name TEXT PRIMARY KEY,
  count INTEGER NOT NULL,
  success INTEGER NOT NULL,
  fail INTEGER NOT NULL,
  avg_ttl REAL NOT NULL,
  avg_time REAL NOT NULL,
  packet_loss REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS probe_history (
  seq INTEGER PRIMARY KEY,
  timestamp INTEGER NOT NULL,
  datetime TEXT NOT NULL,
  success INTEGER NOT NULL,
  ttl INTEGER,
  time REAL
);

CREATE TABLE IF NOT EXISTS probe_failed (
  seq INTEGER PRIMARY KEY,
  timestamp INTEGER NOT NULL,
  datetime TEXT NOT NULL,
  success INTEGER NOT NULL,
  ttl INTEGER,
  time REAL
);

CREATE TABLE IF NOT EXISTS speedtest (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  ping REAL NOT NULL,
  download REAL NOT NULL,
  upload REAL NOT NULL,
  isp TEXT NOT NULL,
  server TEXT NOT NULL,
  taken_at TEXT NOT NULL
);
`)
	return err
}

const (
	artifactSummary   = "summary"
	artifactHistory   = "history"
	artifactFailed    = "failed"
	artifactSpeedtest = "speedtest"
)

// SaveSummary replaces every window row
func (s *SQLiteStore) SaveSummary(summary models.Summary) error {
	return s.inTx(artifactSummary, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM window_stats`); err != nil {
			return err
		}
		for name, agg := range summary {
			_, err := tx.Exec(`
INSERT INTO window_stats(name, count, success, fail, avg_ttl, avg_time, packet_loss)
VALUES(?, ?, ?, ?, ?, ?, ?)`,
				name, agg.Count, agg.Success, agg.Fail, agg.AvgTTL, agg.AvgTime, agg.PacketLoss)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveHistory makes probe_history equal to history
func (s *SQLiteStore) SaveHistory(history []models.ProbeRecord) error {
	return s.inTx(artifactHistory, func(tx *sql.Tx) error {
		return syncRecords(tx, "probe_history", history)
	})
}

// SaveFailed makes probe_failed equal to failed
func (s *SQLiteStore) SaveFailed(failed []models.ProbeRecord) error {
	return s.inTx(artifactFailed, func(tx *sql.Tx) error {
		return syncRecords(tx, "probe_failed", failed)
	})
}

// SaveSpeedtest upserts the single speedtest row
func (s *SQLiteStore) SaveSpeedtest(snap models.SpeedtestSnapshot) error {
	return s.inTx(artifactSpeedtest, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
INSERT INTO speedtest(id, ping, download, upload, isp, server, taken_at)
VALUES(1, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  ping=excluded.ping,
  download=excluded.download,
  upload=excluded.upload,
  isp=excluded.isp,
  server=excluded.server,
  taken_at=excluded.taken_at`,
			snap.Ping, snap.Download, snap.Upload, snap.ISP, snap.Server,
			snap.Timestamp.UTC().Format(time.RFC3339Nano))
		return err
	})
}

// inTx runs fn in a transaction and stamps the artifact as written
func (s *SQLiteStore) inTx(artifact string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	_, err = tx.Exec(`
INSERT INTO store_meta(artifact, updated_at) VALUES(?, ?)
ON CONFLICT(artifact) DO UPDATE SET updated_at=excluded.updated_at`,
		artifact, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// syncRecords leaves table holding exactly records, in order.
//
// The log only grows at the tail and loses entries older than its oldest
// survivor, so the usual save deletes the expired rows and appends the new
// ones. If the stored rows are not a prefix of records after that, the table
// is rewritten from scratch.
func syncRecords(tx *sql.Tx, table string, records []models.ProbeRecord) error {
	if len(records) == 0 {
		_, err := tx.Exec(`DELETE FROM ` + table)
		return err
	}

	oldest := records[0].Timestamp
	for _, r := range records[1:] {
		oldest = min(oldest, r.Timestamp)
	}
	if _, err := tx.Exec(`DELETE FROM `+table+` WHERE timestamp < ?`, oldest); err != nil {
		return err
	}

	var stored int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&stored); err != nil {
		return err
	}

	start := 0
	if stored > 0 && stored <= len(records) {
		var ts int64
		var ok bool
		err := tx.QueryRow(`SELECT timestamp, success FROM ` + table + ` ORDER BY seq DESC LIMIT 1`).Scan(&ts, &ok)
		if err != nil {
			return err
		}
		last := records[stored-1]
		if ts == last.Timestamp && ok == last.Success {
			start = stored
		}
	}
	if start == 0 && stored > 0 {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO ` + table + `(timestamp, datetime, success, ttl, time) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records[start:] {
		var ttl sql.NullInt64
		if r.TTL != nil {
			ttl = sql.NullInt64{Int64: int64(*r.TTL), Valid: true}
		}
		var rtt sql.NullFloat64
		if r.Time != nil {
			rtt = sql.NullFloat64{Float64: *r.Time, Valid: true}
		}
		if _, err := stmt.Exec(r.Timestamp, r.DateTime, r.Success, ttl, rtt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) written(artifact string) (bool, error) {
	var updatedAt string
	err := s.db.QueryRow(`SELECT updated_at FROM store_meta WHERE artifact = ?`, artifact).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LoadSummary reads the window rows
func (s *SQLiteStore) LoadSummary() (models.Summary, bool, error) {
	found, err := s.written(artifactSummary)
	if err != nil || !found {
		return nil, false, err
	}

	rows, err := s.db.Query(`SELECT name, count, success, fail, avg_ttl, avg_time, packet_loss FROM window_stats`)
	if err != nil {
		return nil, true, err
	}
	defer rows.Close()

	summary := models.Summary{}
	for rows.Next() {
		var name string
		var agg models.WindowAggregate
		if err := rows.Scan(&name, &agg.Count, &agg.Success, &agg.Fail, &agg.AvgTTL, &agg.AvgTime, &agg.PacketLoss); err != nil {
			return nil, true, corrupt("window_stats", err)
		}
		summary[name] = agg
	}
	return summary, true, rows.Err()
}

// LoadHistory reads probe_history in order
func (s *SQLiteStore) LoadHistory() ([]models.ProbeRecord, bool, error) {
	return s.loadRecords(artifactHistory, "probe_history")
}

// LoadFailed reads probe_failed in order
func (s *SQLiteStore) LoadFailed() ([]models.ProbeRecord, bool, error) {
	return s.loadRecords(artifactFailed, "probe_failed")
}

func (s *SQLiteStore) loadRecords(artifact, table string) ([]models.ProbeRecord, bool, error) {
	found, err := s.written(artifact)
	if err != nil || !found {
		return nil, false, err
	}

	rows, err := s.db.Query(`SELECT timestamp, datetime, success, ttl, time FROM ` + table + ` ORDER BY seq`)
	if err != nil {
		return nil, true, err
	}
	defer rows.Close()

	records := []models.ProbeRecord{}
	for rows.Next() {
		var r models.ProbeRecord
		var ttl sql.NullInt64
		var rtt sql.NullFloat64
		if err := rows.Scan(&r.Timestamp, &r.DateTime, &r.Success, &ttl, &rtt); err != nil {
			return nil, true, corrupt(table, err)
		}
		if ttl.Valid {
			v := int(ttl.Int64)
			r.TTL = &v
		}
		if rtt.Valid {
			v := rtt.Float64
			r.Time = &v
		}
		records = append(records, r)
	}
	return records, true, rows.Err()
}

// LoadSpeedtest reads the speedtest row
func (s *SQLiteStore) LoadSpeedtest() (models.SpeedtestSnapshot, bool, error) {
	var snap models.SpeedtestSnapshot
	var takenAt string
	err := s.db.QueryRow(`SELECT ping, download, upload, isp, server, taken_at FROM speedtest WHERE id = 1`).
		Scan(&snap.Ping, &snap.Download, &snap.Upload, &snap.ISP, &snap.Server, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, corrupt("speedtest", err)
	}
	snap.Timestamp, err = time.Parse(time.RFC3339Nano, takenAt)
	if err != nil {
		return snap, true, corrupt("speedtest", err)
	}
	return snap, true, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
