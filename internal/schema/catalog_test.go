package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogResolve(t *testing.T) {
	catalog := NewCatalog()

	tests := []struct {
		name     string
		header   string
		wantName string
		wantKind Kind
		found    bool
	}{
		{"exact match", "Matricule", ColIdentifier, KindIdentifier, true},
		{"lowercase", "matricule", ColIdentifier, KindIdentifier, true},
		{"surrounding whitespace", "  Moy S1  ", ColAverageS1, KindAverage, true},
		{"internal extra whitespace", "Rang   S2", ColRankS2, KindRank, true},
		{"mixed case subject", "sys1", "SYS1", KindGrade, true},
		{"retake average", "MOY RACHAT", ColRetakeAverage, KindAverage, true},
		{"unknown header", "Observations", "", "", false},
		{"empty header", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, ok := catalog.Resolve(tt.header)
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.wantName, col.Name)
				assert.Equal(t, tt.wantKind, col.Kind)
			}
		})
	}
}

func TestCatalogColumns(t *testing.T) {
	catalog := NewCatalog()
	cols := catalog.Columns()

	// identifier + 17 subjects + 2x(rank, average) + overall rank/avg + retake
	assert.Len(t, cols, 1+len(Subjects)+4+3)
	assert.Equal(t, ColIdentifier, cols[0].Name)
	assert.True(t, cols[0].Required)

	semesters := map[string]int{ColRankS1: 1, ColAverageS1: 1, ColRankS2: 2, ColAverageS2: 2}
	for _, col := range cols {
		if want, ok := semesters[col.Name]; ok {
			assert.Equal(t, want, col.Semester, col.Name)
		}
	}
}

func TestCatalogSubjects(t *testing.T) {
	catalog := NewCatalog()

	for _, s := range Subjects {
		assert.True(t, catalog.IsSubject(s), s)
	}
	assert.False(t, catalog.IsSubject(ColIdentifier))
	assert.False(t, catalog.IsSubject(ColAverageS1))
}

func TestInGradeRange(t *testing.T) {
	catalog := NewCatalog()

	assert.True(t, catalog.InGradeRange(0))
	assert.True(t, catalog.InGradeRange(20))
	assert.True(t, catalog.InGradeRange(12.75))
	assert.False(t, catalog.InGradeRange(-0.5))
	assert.False(t, catalog.InGradeRange(20.25))
}
