package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentRecordGrade(t *testing.T) {
	rec := StudentRecord{Grades: []SubjectGrade{
		{Subject: "SYS1", Grade: 14},
		{Subject: "RES1", Grade: 25, OutOfRange: true},
	}}

	g, ok := rec.Grade("SYS1")
	require.True(t, ok)
	assert.Equal(t, 14.0, g)

	_, ok = rec.Grade("RES1")
	assert.False(t, ok, "flagged grades are not valid")

	_, ok = rec.Grade("BDD")
	assert.False(t, ok)
}

func TestStudentRecordScoreable(t *testing.T) {
	avg := 13.5
	rank := 4

	assert.False(t, StudentRecord{}.Scoreable())
	assert.False(t, StudentRecord{
		Semesters: []SemesterSummary{{Semester: 1, Rank: &rank}},
	}.Scoreable(), "a rank alone is not enough")
	assert.True(t, StudentRecord{
		Semesters: []SemesterSummary{{Semester: 2, Average: &avg}},
	}.Scoreable())
}

func TestPromotionBatchStudentDiagnostics(t *testing.T) {
	batch := PromotionBatch{
		Promotion: "2025",
		Students:  []StudentRecord{{ID: "22-0001", Row: 3}},
		Diagnostics: []Diagnostic{
			{StudentID: "22-0001", Code: DiagOutOfRange},
			{Row: 3, Code: DiagNonNumeric},
			{Row: 5, Code: DiagMissingIdentifier},
			{StudentID: "22-0002", Code: DiagDuplicateID},
		},
	}

	diags := batch.StudentDiagnostics("22-0001")
	require.Len(t, diags, 2)
	assert.Equal(t, DiagOutOfRange, diags[0].Code)
	assert.Equal(t, DiagNonNumeric, diags[1].Code)

	assert.Empty(t, batch.StudentDiagnostics("22-0099"))
}

func TestSpecialtyProfileIsValid(t *testing.T) {
	tests := []struct {
		name    string
		profile SpecialtyProfile
		want    bool
	}{
		{"valid", SpecialtyProfile{Name: "SIL", Weights: map[string]float64{"IGL": 0.5, "BDD": 0.5}}, true},
		{"sum below one", SpecialtyProfile{Name: "X", Weights: map[string]float64{"IGL": 0.5}}, false},
		{"negative weight", SpecialtyProfile{Name: "X", Weights: map[string]float64{"IGL": 1.5, "BDD": -0.5}}, false},
		{"zero weight", SpecialtyProfile{Name: "X", Weights: map[string]float64{"IGL": 1, "BDD": 0}}, false},
		{"no name", SpecialtyProfile{Weights: map[string]float64{"IGL": 1}}, false},
		{"no weights", SpecialtyProfile{Name: "X"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.IsValid())
		})
	}
}

func TestScoringOptionsIsValid(t *testing.T) {
	assert.True(t, DefaultScoringOptions().IsValid())

	bad := DefaultScoringOptions()
	bad.GlobalWeight = 1.5
	assert.False(t, bad.IsValid())

	bad = DefaultScoringOptions()
	bad.MinStdDevFloor = 0
	assert.False(t, bad.IsValid())

	bad = DefaultScoringOptions()
	bad.DisplayScoreMax = bad.DisplayScoreMin
	assert.False(t, bad.IsValid())
}
