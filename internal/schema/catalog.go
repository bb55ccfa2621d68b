// Package schema declares the fixed set of academic columns recognized in
// uploaded promotion files and resolves raw spreadsheet headers against it.
package schema

import "strings"

// Kind is the semantic type of a recognized column.
type Kind string

const (
	KindIdentifier Kind = "identifier"
	KindGrade      Kind = "grade"
	KindRank       Kind = "rank"
	KindAverage    Kind = "average"
)

// Column describes one recognized academic column.
type Column struct {
	Name     string // canonical header, as it appears in source files
	Kind     Kind
	Semester int  // 1 or 2 for per-semester columns, 0 otherwise
	Required bool // row is rejected when a required column has no value
}

// Grade bounds for every subject column.
const (
	GradeMin = 0.0
	GradeMax = 20.0
)

// Canonical column names.
const (
	ColIdentifier    = "Matricule"
	ColRankS1        = "Rang S1"
	ColAverageS1     = "Moy S1"
	ColRankS2        = "Rang S2"
	ColAverageS2     = "Moy S2"
	ColOverallRank   = "Rang"
	ColOverallAvg    = "Moy"
	ColRetakeAverage = "Moy Rachat"
)

// Subjects is the fixed set of graded subject codes, in curriculum order
// (semester 1 followed by semester 2).
var Subjects = []string{
	"SYS1", "RES1", "ANUM", "RO", "ORG", "LANG1", "IGL", "THP",
	"MCSI", "BDD", "SEC", "CPROJ", "PROJ", "LANG2", "ARCH", "SYS2", "RES2",
}

// Catalog is the full recognized column set. Pure data, no behavior beyond
// header resolution.
type Catalog struct {
	columns []Column
	byKey   map[string]Column
}

// NewCatalog builds the default catalog.
func NewCatalog() *Catalog {
	cols := []Column{
		{Name: ColIdentifier, Kind: KindIdentifier, Required: true},
	}
	for _, s := range Subjects {
		cols = append(cols, Column{Name: s, Kind: KindGrade})
	}
	cols = append(cols,
		Column{Name: ColRankS1, Kind: KindRank, Semester: 1},
		Column{Name: ColAverageS1, Kind: KindAverage, Semester: 1},
		Column{Name: ColRankS2, Kind: KindRank, Semester: 2},
		Column{Name: ColAverageS2, Kind: KindAverage, Semester: 2},
		Column{Name: ColOverallRank, Kind: KindRank},
		Column{Name: ColOverallAvg, Kind: KindAverage},
		Column{Name: ColRetakeAverage, Kind: KindAverage},
	)

	c := &Catalog{columns: cols, byKey: make(map[string]Column, len(cols))}
	for _, col := range cols {
		c.byKey[normalizeKey(col.Name)] = col
	}
	return c
}

// Columns returns the recognized columns in catalog order.
func (c *Catalog) Columns() []Column {
	out := make([]Column, len(c.columns))
	copy(out, c.columns)
	return out
}

// Resolve matches a raw header against the catalog, ignoring case and
// surrounding/internal extra whitespace.
func (c *Catalog) Resolve(header string) (Column, bool) {
	col, ok := c.byKey[normalizeKey(header)]
	return col, ok
}

// IsSubject reports whether code is a recognized graded subject.
func (c *Catalog) IsSubject(code string) bool {
	col, ok := c.Resolve(code)
	return ok && col.Kind == KindGrade
}

// InGradeRange reports whether a grade lies inside the configured bounds.
func (c *Catalog) InGradeRange(grade float64) bool {
	return grade >= GradeMin && grade <= GradeMax
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
