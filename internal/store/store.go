// Package store persists promotion batches and recommendation reports in
// SQLite. Batch replacement policy lives here, not in the pipeline: a new
// upload for a promotion replaces the previous one wholesale.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"specadvisor/pkg/contracts/domain"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and creates, if needed) the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS promotions (
			promotion    TEXT PRIMARY KEY,
			file_name    TEXT,
			student_count INTEGER NOT NULL DEFAULT 0,
			diagnostics  TEXT,
			uploaded_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			matricule       TEXT NOT NULL,
			promotion       TEXT NOT NULL REFERENCES promotions(promotion) ON DELETE CASCADE,
			row             INTEGER NOT NULL,
			grades          TEXT NOT NULL,
			semesters       TEXT NOT NULL,
			overall_rank    INTEGER,
			overall_average REAL,
			retake_average  REAL,
			PRIMARY KEY (matricule, promotion)
		)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			matricule     TEXT NOT NULL,
			promotion     TEXT NOT NULL REFERENCES promotions(promotion) ON DELETE CASCADE,
			top_specialty TEXT,
			top_score     REAL,
			report        TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL,
			PRIMARY KEY (matricule, promotion)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ReplacePromotion stores a freshly normalized batch, removing any previous
// upload for the same promotion identifier.
func (s *Store) ReplacePromotion(ctx context.Context, batch *domain.PromotionBatch, fileName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM promotions WHERE promotion = ?`, batch.Promotion); err != nil {
		return fmt.Errorf("delete promotion %s: %w", batch.Promotion, err)
	}

	diags, err := json.Marshal(batch.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO promotions (promotion, file_name, student_count, diagnostics, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		batch.Promotion, fileName, len(batch.Students), string(diags), time.Now().UTC()); err != nil {
		return fmt.Errorf("insert promotion %s: %w", batch.Promotion, err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO students (matricule, promotion, row, grades, semesters, overall_rank, overall_average, retake_average)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare student insert: %w", err)
	}
	defer insert.Close()

	for _, rec := range batch.Students {
		grades, err := json.Marshal(rec.Grades)
		if err != nil {
			return fmt.Errorf("marshal grades for %s: %w", rec.ID, err)
		}
		semesters, err := json.Marshal(rec.Semesters)
		if err != nil {
			return fmt.Errorf("marshal semesters for %s: %w", rec.ID, err)
		}
		if _, err := insert.ExecContext(ctx, rec.ID, rec.Promotion, rec.Row,
			string(grades), string(semesters), rec.OverallRank, rec.OverallAverage, rec.RetakeAverage); err != nil {
			return fmt.Errorf("insert student %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("stored promotion batch",
		slog.String("promotion", batch.Promotion),
		slog.Int("students", len(batch.Students)))
	return nil
}

// GetBatch loads a stored promotion batch, students in original row order.
func (s *Store) GetBatch(ctx context.Context, promotion string) (*domain.PromotionBatch, error) {
	batch := &domain.PromotionBatch{Promotion: promotion}

	var diags sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT diagnostics FROM promotions WHERE promotion = ?`, promotion).Scan(&diags)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("promotion %s: %w", promotion, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load promotion %s: %w", promotion, err)
	}
	if diags.Valid && diags.String != "" {
		if err := json.Unmarshal([]byte(diags.String), &batch.Diagnostics); err != nil {
			return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT matricule, row, grades, semesters, overall_rank, overall_average, retake_average
		 FROM students WHERE promotion = ? ORDER BY row`, promotion)
	if err != nil {
		return nil, fmt.Errorf("load students for %s: %w", promotion, err)
	}
	defer rows.Close()

	for rows.Next() {
		rec := domain.StudentRecord{Promotion: promotion}
		var grades, semesters string
		if err := rows.Scan(&rec.ID, &rec.Row, &grades, &semesters,
			&rec.OverallRank, &rec.OverallAverage, &rec.RetakeAverage); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if err := json.Unmarshal([]byte(grades), &rec.Grades); err != nil {
			return nil, fmt.Errorf("unmarshal grades for %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(semesters), &rec.Semesters); err != nil {
			return nil, fmt.Errorf("unmarshal semesters for %s: %w", rec.ID, err)
		}
		batch.Students = append(batch.Students, rec)
	}
	return batch, rows.Err()
}

// SaveReports stores the assembled recommendation reports for a promotion.
func (s *Store) SaveReports(ctx context.Context, promotion string, reports []domain.StudentReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE promotion = ?`, promotion); err != nil {
		return fmt.Errorf("delete recommendations for %s: %w", promotion, err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO recommendations (matricule, promotion, top_specialty, top_score, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare report insert: %w", err)
	}
	defer insert.Close()

	now := time.Now().UTC()
	for _, rep := range reports {
		payload, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("marshal report for %s: %w", rep.StudentID, err)
		}
		var topScore sql.NullFloat64
		if len(rep.Scores) > 0 {
			topScore = sql.NullFloat64{Float64: rep.Scores[0].Score, Valid: true}
		}
		if _, err := insert.ExecContext(ctx, rep.StudentID, promotion,
			rep.Top(), topScore, string(payload), now); err != nil {
			return fmt.Errorf("insert report for %s: %w", rep.StudentID, err)
		}
	}

	return tx.Commit()
}

// GetReports loads the stored reports for a promotion, ordered by student.
func (s *Store) GetReports(ctx context.Context, promotion string) ([]domain.StudentReport, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM promotions WHERE promotion = ?`, promotion).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check promotion %s: %w", promotion, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("promotion %s: %w", promotion, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM recommendations WHERE promotion = ? ORDER BY matricule`, promotion)
	if err != nil {
		return nil, fmt.Errorf("load reports for %s: %w", promotion, err)
	}
	defer rows.Close()

	var reports []domain.StudentReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var rep domain.StudentReport
		if err := json.Unmarshal([]byte(payload), &rep); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
