package domain

// Severity classifies how serious a diagnostic is.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes emitted by the normalizer, statistics builder and engine.
const (
	DiagMissingIdentifier = "missing_identifier"
	DiagMissingSemester   = "missing_semester_average"
	DiagDuplicateID       = "duplicate_identifier"
	DiagDuplicateRank     = "duplicate_rank"
	DiagNonNumeric        = "non_numeric"
	DiagOutOfRange        = "out_of_range"
	DiagStdDevFloored     = "stddev_floored"
	DiagScoringUndefined  = "scoring_undefined"
	DiagInsufficientData  = "insufficient_data"
)

// Diagnostic is a structured, non-fatal record of a data quality issue.
// Row is the 1-based data row it originated from (0 when not row-bound).
type Diagnostic struct {
	Row       int      `json:"row,omitempty"`
	StudentID string   `json:"student_id,omitempty"`
	Column    string   `json:"column,omitempty"`
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
}

// SubjectGrade is one graded subject on a student record. OutOfRange grades
// are kept for display but excluded from cohort statistics and scoring.
type SubjectGrade struct {
	Subject    string  `json:"subject" validate:"required"`
	Grade      float64 `json:"grade"`
	OutOfRange bool    `json:"out_of_range,omitempty"`
}

// SemesterSummary holds a student's ranking and average for one semester.
type SemesterSummary struct {
	Semester int      `json:"semester" validate:"min=1,max=2"`
	Rank     *int     `json:"rank,omitempty"`
	Average  *float64 `json:"average,omitempty"`
}

// StudentRecord is one student's normalized academic record. Records are
// immutable once produced by the normalizer.
type StudentRecord struct {
	ID             string            `json:"id" validate:"required"`
	Promotion      string            `json:"promotion" validate:"required"`
	Row            int               `json:"row"` // 1-based source row, for traceability
	Grades         []SubjectGrade    `json:"grades"`
	Semesters      []SemesterSummary `json:"semesters" validate:"min=1"`
	OverallRank    *int              `json:"overall_rank,omitempty"`
	OverallAverage *float64          `json:"overall_average,omitempty"`
	RetakeAverage  *float64          `json:"retake_average,omitempty"`
}

// Grade returns the student's valid grade for a subject. Flagged (out of
// range) and absent grades report false.
func (r StudentRecord) Grade(subject string) (float64, bool) {
	for _, g := range r.Grades {
		if g.Subject == subject {
			if g.OutOfRange {
				return 0, false
			}
			return g.Grade, true
		}
	}
	return 0, false
}

// Semester returns the summary for semester n, if present.
func (r StudentRecord) Semester(n int) (SemesterSummary, bool) {
	for _, s := range r.Semesters {
		if s.Semester == n {
			return s, true
		}
	}
	return SemesterSummary{}, false
}

// Scoreable reports whether the record carries enough data to be scored:
// at least one semester summary with an average.
func (r StudentRecord) Scoreable() bool {
	for _, s := range r.Semesters {
		if s.Average != nil {
			return true
		}
	}
	return false
}

// PromotionBatch is the outcome of normalizing one uploaded file: the
// promotion's student records in original row order plus every row-level
// diagnostic collected along the way.
type PromotionBatch struct {
	Promotion   string          `json:"promotion" validate:"required"`
	Students    []StudentRecord `json:"students"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
}

// Student returns the record with the given identifier.
func (b PromotionBatch) Student(id string) (StudentRecord, bool) {
	for _, s := range b.Students {
		if s.ID == id {
			return s, true
		}
	}
	return StudentRecord{}, false
}

// StudentDiagnostics returns the diagnostics attached to one student, either
// by identifier or by the source row the student came from.
func (b PromotionBatch) StudentDiagnostics(id string) []Diagnostic {
	rec, found := b.Student(id)
	var out []Diagnostic
	for _, d := range b.Diagnostics {
		if d.StudentID == id || (found && d.Row != 0 && d.Row == rec.Row) {
			out = append(out, d)
		}
	}
	return out
}
