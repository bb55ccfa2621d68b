package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound marks lookups for promotions that were never uploaded.
var ErrNotFound = errors.New("not found")

// PromotionInfo summarizes one uploaded promotion.
type PromotionInfo struct {
	Promotion    string    `json:"promotion"`
	FileName     string    `json:"file_name,omitempty"`
	StudentCount int       `json:"student_count"`
	AvgRetake    *float64  `json:"avg_retake,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// DashboardStats aggregates stored data for the dashboard view.
type DashboardStats struct {
	TotalStudents         int             `json:"total_students"`
	SpecialtyDistribution map[string]int  `json:"specialty_distribution"`
	Promotions            []PromotionInfo `json:"promotions"`
}

// ListPromotions returns every uploaded promotion, most recent first.
func (s *Store) ListPromotions(ctx context.Context) ([]PromotionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.promotion, p.file_name, p.student_count, p.uploaded_at,
		       (SELECT AVG(retake_average) FROM students st WHERE st.promotion = p.promotion)
		FROM promotions p
		ORDER BY p.uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var out []PromotionInfo
	for rows.Next() {
		var info PromotionInfo
		var fileName sql.NullString
		var avg sql.NullFloat64
		if err := rows.Scan(&info.Promotion, &fileName, &info.StudentCount, &info.UploadedAt, &avg); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		info.FileName = fileName.String
		if avg.Valid {
			info.AvgRetake = &avg.Float64
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Dashboard aggregates student counts and the recommended-specialty
// distribution, optionally restricted to a set of promotions.
func (s *Store) Dashboard(ctx context.Context, promotions []string) (DashboardStats, error) {
	stats := DashboardStats{SpecialtyDistribution: make(map[string]int)}

	filter := ""
	args := make([]interface{}, 0, len(promotions))
	if len(promotions) > 0 {
		filter = " WHERE promotion IN (?" + strings.Repeat(",?", len(promotions)-1) + ")"
		for _, p := range promotions {
			args = append(args, p)
		}
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students`+filter, args...).Scan(&stats.TotalStudents); err != nil {
		return stats, fmt.Errorf("count students: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT top_specialty, COUNT(*) FROM recommendations`+filter+
			` GROUP BY top_specialty`, args...)
	if err != nil {
		return stats, fmt.Errorf("specialty distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var specialty sql.NullString
		var count int
		if err := rows.Scan(&specialty, &count); err != nil {
			return stats, fmt.Errorf("scan distribution: %w", err)
		}
		if specialty.Valid && specialty.String != "" {
			stats.SpecialtyDistribution[specialty.String] = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	infos, err := s.ListPromotions(ctx)
	if err != nil {
		return stats, err
	}
	stats.Promotions = infos
	return stats, nil
}
