// Package store persists finished tutoring sessions and their report
// artifacts to sqlite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edspace/lectern/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		professor TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_abnormally INTEGER NOT NULL DEFAULT 0,
		saved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		page INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		metadata TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS quiz_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		page INTEGER NOT NULL,
		score_percentage REAL NOT NULL,
		performance_tier TEXT NOT NULL,
		result TEXT NOT NULL,
		graded_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS reports (
		session_id TEXT PRIMARY KEY,
		generated_at DATETIME NOT NULL,
		total_score REAL NOT NULL,
		performance_level TEXT NOT NULL,
		report TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSession writes a session's transcript and quiz results. Calling it
// again for the same session replaces the previous snapshot.
func (s *Store) SaveSession(id, professor string, startedAt time.Time, abnormal bool, history []model.Entry, results []model.QuizResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	abnormalInt := 0
	if abnormal {
		abnormalInt = 1
	}
	_, err = tx.Exec(`INSERT INTO sessions (id, professor, started_at, ended_abnormally, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET ended_abnormally = excluded.ended_abnormally, saved_at = excluded.saved_at`,
		id, professor, startedAt, abnormalInt, time.Now())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM entries WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	for _, e := range history {
		var metadata []byte
		if e.Metadata != nil {
			metadata, err = json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal entry metadata: %w", err)
			}
		}
		_, err = tx.Exec(`INSERT INTO entries (session_id, role, content, page, timestamp, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, string(e.Role), e.Content, e.Page, e.Timestamp, string(metadata))
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM quiz_results WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clear quiz results: %w", err)
	}
	for _, r := range results {
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal quiz result: %w", err)
		}
		_, err = tx.Exec(`INSERT INTO quiz_results (session_id, page, score_percentage, performance_tier, result, graded_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, r.Page, r.ScorePercentage, string(r.PerformanceTier), string(raw), r.GradedAt)
		if err != nil {
			return fmt.Errorf("insert quiz result: %w", err)
		}
	}

	return tx.Commit()
}

// SaveReport stores the report artifact for a session, replacing any
// earlier one.
func (s *Store) SaveReport(sessionID string, report *model.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO reports (session_id, generated_at, total_score, performance_level, report)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			generated_at = excluded.generated_at,
			total_score = excluded.total_score,
			performance_level = excluded.performance_level,
			report = excluded.report`,
		sessionID, report.Metadata.GeneratedAt, report.Metadata.TotalScore, report.Metadata.PerformanceLevel, string(raw))
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// StoredReport is one persisted report row.
type StoredReport struct {
	SessionID        string       `json:"session_id"`
	GeneratedAt      time.Time    `json:"generated_at"`
	TotalScore       float64      `json:"total_score"`
	PerformanceLevel string       `json:"performance_level"`
	Report           model.Report `json:"report"`
}

// ListReports returns all stored reports, newest first.
func (s *Store) ListReports() ([]StoredReport, error) {
	rows, err := s.db.Query(`SELECT session_id, generated_at, total_score, performance_level, report
		FROM reports ORDER BY generated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []StoredReport
	for rows.Next() {
		var sr StoredReport
		var raw string
		if err := rows.Scan(&sr.SessionID, &sr.GeneratedAt, &sr.TotalScore, &sr.PerformanceLevel, &raw); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &sr.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report %s: %w", sr.SessionID, err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// GetReport returns the stored report for a session, or sql.ErrNoRows.
func (s *Store) GetReport(sessionID string) (*StoredReport, error) {
	var sr StoredReport
	var raw string
	err := s.db.QueryRow(`SELECT session_id, generated_at, total_score, performance_level, report
		FROM reports WHERE session_id = ?`, sessionID).
		Scan(&sr.SessionID, &sr.GeneratedAt, &sr.TotalScore, &sr.PerformanceLevel, &raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &sr.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &sr, nil
}

// ListEntries returns a session's persisted transcript in insertion order.
func (s *Store) ListEntries(sessionID string) ([]model.Entry, error) {
	rows, err := s.db.Query(`SELECT role, content, page, timestamp, metadata
		FROM entries WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []model.Entry
	for rows.Next() {
		var e model.Entry
		var role, metadata string
		if err := rows.Scan(&role, &e.Content, &e.Page, &e.Timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Role = model.Role(role)
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal entry metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
