package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/exambench/exambench/internal/model"

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
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		course TEXT NOT NULL DEFAULT '',
		institution TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		score_total INTEGER NOT NULL DEFAULT 0,
		num_questions INTEGER NOT NULL DEFAULT 0,
		document TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_submissions_exam_id ON submissions(exam_id);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bench_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertSubmission stores a submission and returns its generated ID.
func (s *Store) InsertSubmission(sub model.Submission) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO submissions (id, exam_id, course, institution, status, score_total, num_questions, document, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ExamID, sub.Course, sub.Institution, sub.Status,
		sub.ScoreTotal, sub.NumQuestions, sub.Document, sub.Note, sub.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

// GetSubmission returns a submission by ID, document included.
func (s *Store) GetSubmission(id string) (model.Submission, error) {
	var sub model.Submission
	err := s.db.QueryRow(
		`SELECT id, exam_id, course, institution, status, score_total, num_questions, document, note, created_at
		 FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.ExamID, &sub.Course, &sub.Institution, &sub.Status,
		&sub.ScoreTotal, &sub.NumQuestions, &sub.Document, &sub.Note, &sub.CreatedAt)
	return sub, err
}

// GetSubmissionByExamID returns a submission by its exam identifier.
func (s *Store) GetSubmissionByExamID(examID string) (model.Submission, error) {
	var sub model.Submission
	err := s.db.QueryRow(
		`SELECT id, exam_id, course, institution, status, score_total, num_questions, document, note, created_at
		 FROM submissions WHERE exam_id = ?`, examID,
	).Scan(&sub.ID, &sub.ExamID, &sub.Course, &sub.Institution, &sub.Status,
		&sub.ScoreTotal, &sub.NumQuestions, &sub.Document, &sub.Note, &sub.CreatedAt)
	return sub, err
}

// ListSubmissions returns submissions matching the given filters,
// newest first, without their document bodies. Empty strings mean no
// filtering on that field.
func (s *Store) ListSubmissions(status model.SubmissionStatus, course string) ([]model.Submission, error) {
	query := `SELECT id, exam_id, course, institution, status, score_total, num_questions, note, created_at
	          FROM submissions WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if course != "" {
		query += ` AND course = ?`
		args = append(args, course)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.ExamID, &sub.Course, &sub.Institution, &sub.Status,
			&sub.ScoreTotal, &sub.NumQuestions, &sub.Note, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSubmissionStatus moves a submission to a new status, recording
// an optional reviewer note.
func (s *Store) UpdateSubmissionStatus(id string, status model.SubmissionStatus, note string) error {
	res, err := s.db.Exec(
		`UPDATE submissions SET status = ?, note = ? WHERE id = ?`,
		status, note, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateSubmissionDocument replaces a submission's document text and
// derived counters.
func (s *Store) UpdateSubmissionDocument(id, document string, scoreTotal, numQuestions int) error {
	res, err := s.db.Exec(
		`UPDATE submissions SET document = ?, score_total = ?, num_questions = ? WHERE id = ?`,
		document, scoreTotal, numQuestions, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SubmissionCount returns the number of stored submissions.
func (s *Store) SubmissionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&count)
	return count, err
}
