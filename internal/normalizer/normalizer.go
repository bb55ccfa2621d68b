// Package normalizer turns raw tabular promotion files into canonical
// student records, collecting row-level diagnostics instead of failing the
// whole batch on a single bad row.
package normalizer

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"specadvisor/internal/schema"
	"specadvisor/pkg/contracts/domain"
)

// RawRow is one spreadsheet row as string-keyed cell values. Producing it
// from a concrete container format (CSV, XLSX) is the reader's job; the
// normalizer never touches bytes.
type RawRow map[string]string

// Normalizer validates and coerces raw rows against the schema catalog.
type Normalizer struct {
	catalog *schema.Catalog
	logger  *slog.Logger
}

// New creates a normalizer backed by the default catalog.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{catalog: schema.NewCatalog(), logger: logger}
}

// Normalize converts rows into a promotion batch. Records come back in
// original row order and diagnostics carry 1-based row indices. Only
// structurally invalid input (empty promotion, no rows, no recognized
// columns at all) is a hard error.
func (n *Normalizer) Normalize(rows []RawRow, promotion string) (*domain.PromotionBatch, error) {
	if strings.TrimSpace(promotion) == "" {
		return nil, fmt.Errorf("promotion identifier is required")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows in input")
	}
	if !n.anyRecognized(rows[0]) {
		return nil, fmt.Errorf("input is not row-shaped: no recognized columns")
	}

	batch := &domain.PromotionBatch{Promotion: strings.TrimSpace(promotion)}
	seen := make(map[string]int) // identifier -> first row

	for i, raw := range rows {
		rowNum := i + 1
		cells := n.resolveCells(raw)

		rec, diags := n.normalizeRow(cells, rowNum, batch.Promotion)
		batch.Diagnostics = append(batch.Diagnostics, diags...)
		if rec == nil {
			continue
		}

		if first, dup := seen[rec.ID]; dup {
			batch.Diagnostics = append(batch.Diagnostics, domain.Diagnostic{
				Row:       rowNum,
				StudentID: rec.ID,
				Severity:  domain.SeverityWarning,
				Code:      domain.DiagDuplicateID,
				Message:   fmt.Sprintf("duplicate identifier %q, first seen at row %d", rec.ID, first),
			})
			continue
		}
		seen[rec.ID] = rowNum
		batch.Students = append(batch.Students, *rec)
	}

	batch.Diagnostics = append(batch.Diagnostics, n.checkRankUniqueness(batch.Students)...)

	n.logger.Info("normalized promotion batch",
		slog.String("promotion", batch.Promotion),
		slog.Int("rows", len(rows)),
		slog.Int("students", len(batch.Students)),
		slog.Int("diagnostics", len(batch.Diagnostics)))

	return batch, nil
}

// normalizeRow builds one record; a nil record means the row was rejected.
func (n *Normalizer) normalizeRow(cells map[string]string, rowNum int, promotion string) (*domain.StudentRecord, []domain.Diagnostic) {
	var diags []domain.Diagnostic

	id := strings.TrimSpace(cells[schema.ColIdentifier])
	if id == "" {
		return nil, append(diags, domain.Diagnostic{
			Row:      rowNum,
			Column:   schema.ColIdentifier,
			Severity: domain.SeverityError,
			Code:     domain.DiagMissingIdentifier,
			Message:  "row has no student identifier",
		})
	}

	rec := &domain.StudentRecord{ID: id, Promotion: promotion, Row: rowNum}

	for _, subject := range schema.Subjects {
		val, ok := nonEmpty(cells[subject])
		if !ok {
			continue // absent optional grade
		}
		grade, err := parseNumber(val)
		if err != nil {
			diags = append(diags, domain.Diagnostic{
				Row: rowNum, StudentID: id, Column: subject,
				Severity: domain.SeverityError,
				Code:     domain.DiagNonNumeric,
				Message:  fmt.Sprintf("non-numeric grade %q in %s", val, subject),
			})
			continue
		}
		sg := domain.SubjectGrade{Subject: subject, Grade: grade}
		if !n.catalog.InGradeRange(grade) {
			// Keep the value for display, but flag it so statistics and
			// scoring leave it out.
			sg.OutOfRange = true
			diags = append(diags, domain.Diagnostic{
				Row: rowNum, StudentID: id, Column: subject,
				Severity: domain.SeverityWarning,
				Code:     domain.DiagOutOfRange,
				Message:  fmt.Sprintf("grade %.2f in %s outside [%g, %g]", grade, subject, schema.GradeMin, schema.GradeMax),
			})
		}
		rec.Grades = append(rec.Grades, sg)
	}

	for _, sem := range []struct {
		n        int
		avg, rnk string
	}{
		{1, schema.ColAverageS1, schema.ColRankS1},
		{2, schema.ColAverageS2, schema.ColRankS2},
	} {
		avg, avgDiags := n.parseFloatCell(cells, sem.avg, rowNum, id)
		rank, rankDiags := n.parseIntCell(cells, sem.rnk, rowNum, id)
		diags = append(diags, avgDiags...)
		diags = append(diags, rankDiags...)
		if avg != nil || rank != nil {
			rec.Semesters = append(rec.Semesters, domain.SemesterSummary{Semester: sem.n, Average: avg, Rank: rank})
		}
	}

	if !rec.Scoreable() {
		diags = append(diags, domain.Diagnostic{
			Row: rowNum, StudentID: id,
			Severity: domain.SeverityError,
			Code:     domain.DiagMissingSemester,
			Message:  "no semester average present, row rejected",
		})
		return nil, diags
	}

	var d []domain.Diagnostic
	rec.OverallRank, d = n.parseIntCell(cells, schema.ColOverallRank, rowNum, id)
	diags = append(diags, d...)
	rec.OverallAverage, d = n.parseFloatCell(cells, schema.ColOverallAvg, rowNum, id)
	diags = append(diags, d...)
	rec.RetakeAverage, d = n.parseFloatCell(cells, schema.ColRetakeAverage, rowNum, id)
	diags = append(diags, d...)

	return rec, diags
}

// resolveCells maps raw headers onto canonical column names, ignoring case
// and whitespace differences. Unrecognized headers are dropped.
func (n *Normalizer) resolveCells(raw RawRow) map[string]string {
	cells := make(map[string]string, len(raw))
	for header, value := range raw {
		col, ok := n.catalog.Resolve(header)
		if !ok {
			continue
		}
		if _, exists := cells[col.Name]; !exists {
			cells[col.Name] = value
		}
	}
	return cells
}

func (n *Normalizer) anyRecognized(raw RawRow) bool {
	for header := range raw {
		if _, ok := n.catalog.Resolve(header); ok {
			return true
		}
	}
	return false
}

func (n *Normalizer) parseFloatCell(cells map[string]string, col string, rowNum int, id string) (*float64, []domain.Diagnostic) {
	val, ok := nonEmpty(cells[col])
	if !ok {
		return nil, nil
	}
	f, err := parseNumber(val)
	if err != nil {
		return nil, []domain.Diagnostic{{
			Row: rowNum, StudentID: id, Column: col,
			Severity: domain.SeverityError,
			Code:     domain.DiagNonNumeric,
			Message:  fmt.Sprintf("non-numeric value %q in %s", val, col),
		}}
	}
	return &f, nil
}

func (n *Normalizer) parseIntCell(cells map[string]string, col string, rowNum int, id string) (*int, []domain.Diagnostic) {
	f, diags := n.parseFloatCell(cells, col, rowNum, id)
	if f == nil {
		return nil, diags
	}
	// Rankings exported through Excel often come back as "2.0".
	v := int(math.Round(*f))
	return &v, diags
}

// checkRankUniqueness emits a warning for every semester ranking shared by
// more than one student. Duplicates are a diagnostic, never a rejection.
func (n *Normalizer) checkRankUniqueness(students []domain.StudentRecord) []domain.Diagnostic {
	type key struct{ sem, rank int }
	holders := make(map[key][]string)
	for _, s := range students {
		for _, sem := range s.Semesters {
			if sem.Rank != nil {
				k := key{sem.Semester, *sem.Rank}
				holders[k] = append(holders[k], s.ID)
			}
		}
	}
	keys := make([]key, 0, len(holders))
	for k := range holders {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].sem != keys[j].sem {
			return keys[i].sem < keys[j].sem
		}
		return keys[i].rank < keys[j].rank
	})

	var diags []domain.Diagnostic
	for _, k := range keys {
		ids := holders[k]
		if len(ids) < 2 {
			continue
		}
		diags = append(diags, domain.Diagnostic{
			Severity: domain.SeverityWarning,
			Code:     domain.DiagDuplicateRank,
			Message:  fmt.Sprintf("rank %d in semester %d held by %d students: %s", k.rank, k.sem, len(ids), strings.Join(ids, ", ")),
		})
	}
	return diags
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// parseNumber coerces textual numbers with locale-specific separators into a
// float64. A lone comma is treated as a decimal separator ("14,5"); when both
// separators appear the comma is a thousands separator ("1,234.5").
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
