package domain

import "math"

// SpecialtyProfile maps a specialty to the subjects that matter for it.
// Weights must sum to 1 for the specialty; new specialties are added through
// configuration, not code.
type SpecialtyProfile struct {
	Name        string             `json:"name" yaml:"name" validate:"required"`
	Description string             `json:"description,omitempty" yaml:"description"`
	Weights     map[string]float64 `json:"weights" yaml:"weights" validate:"required,min=1"`
}

// IsValid checks that every weight is positive and the total is 1.
func (p SpecialtyProfile) IsValid() bool {
	if p.Name == "" || len(p.Weights) == 0 {
		return false
	}
	sum := 0.0
	for _, w := range p.Weights {
		if w <= 0 {
			return false
		}
		sum += w
	}
	return math.Abs(sum-1) < 1e-6
}

// ScoringOptions are the injected policy knobs of the statistics builder and
// the recommendation engine.
type ScoringOptions struct {
	// GlobalWeight blends the student's overall ranking percentile into the
	// subject affinity score.
	GlobalWeight float64 `json:"global_weight" yaml:"global_weight" validate:"min=0,max=1"`
	// MinStdDevFloor substitutes for a subject or baseline standard deviation
	// computed from fewer than two samples.
	MinStdDevFloor float64 `json:"min_std_dev_floor" yaml:"min_std_dev_floor" validate:"gt=0"`
	// HistoricalBlendWeight is the share given to prior promotions when
	// blending cohort statistics.
	HistoricalBlendWeight float64 `json:"historical_blend_weight" yaml:"historical_blend_weight" validate:"min=0,max=1"`
	// DisplayScoreMin and DisplayScoreMax bound the normalized display score.
	DisplayScoreMin float64 `json:"display_score_min" yaml:"display_score_min"`
	DisplayScoreMax float64 `json:"display_score_max" yaml:"display_score_max" validate:"gtfield=DisplayScoreMin"`
}

// DefaultScoringOptions returns the recommended defaults.
func DefaultScoringOptions() ScoringOptions {
	return ScoringOptions{
		GlobalWeight:          0.1,
		MinStdDevFloor:        0.5,
		HistoricalBlendWeight: 0.3,
		DisplayScoreMin:       0,
		DisplayScoreMax:       100,
	}
}

// IsValid checks option bounds.
func (o ScoringOptions) IsValid() bool {
	return o.GlobalWeight >= 0 && o.GlobalWeight <= 1 &&
		o.MinStdDevFloor > 0 &&
		o.HistoricalBlendWeight >= 0 && o.HistoricalBlendWeight <= 1 &&
		o.DisplayScoreMax > o.DisplayScoreMin
}

// SubjectStats are the descriptive statistics for one subject's valid grades.
type SubjectStats struct {
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Count   int     `json:"count"`
	Floored bool    `json:"floored,omitempty"` // stddev replaced by the configured floor
}

// BaselineStats describe the cohort's distribution of combined scores for one
// specialty; individual scores are expressed relative to it.
type BaselineStats struct {
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Count   int     `json:"count"`
	Floored bool    `json:"floored,omitempty"`
}

// CohortStatistics is the read-only statistical baseline for one promotion.
// It is always rebuilt wholesale, never mutated in place.
type CohortStatistics struct {
	Promotion string                   `json:"promotion"`
	Size      int                      `json:"size"` // number of students in the cohort
	Subjects  map[string]SubjectStats  `json:"subjects"`
	Baselines map[string]BaselineStats `json:"baselines"`
	Caveats   []Diagnostic             `json:"caveats,omitempty"`
}

// RationaleEntry is one subject's contribution to a specialty score.
type RationaleEntry struct {
	Subject      string  `json:"subject"`
	Weight       float64 `json:"weight"` // weight actually used, after redistribution
	ZScore       float64 `json:"z_score"`
	Contribution float64 `json:"contribution"` // Weight * ZScore
}

// SpecialtyScore is one scored specialty for one student.
type SpecialtyScore struct {
	Specialty     string           `json:"specialty"`
	Score         float64          `json:"score"` // normalized to the display range
	RawAffinity   float64          `json:"raw_affinity"`
	GlobalTerm    float64          `json:"global_term"`
	Combined      float64          `json:"combined"`
	Redistributed bool             `json:"redistributed,omitempty"`
	Missing       []string         `json:"missing_subjects,omitempty"`
	Rationale     []RationaleEntry `json:"rationale"`
}

// RecommendationResult is the engine's output for a single student: scored
// specialties in descending score order plus scoring diagnostics. Produced
// fresh on each request, never persisted by the engine itself.
type RecommendationResult struct {
	StudentID   string           `json:"student_id"`
	Promotion   string           `json:"promotion"`
	Scores      []SpecialtyScore `json:"scores"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
}

// Top returns the highest ranked specialty name, or "" when the student could
// not be scored.
func (r RecommendationResult) Top() string {
	if len(r.Scores) == 0 {
		return ""
	}
	return r.Scores[0].Specialty
}

// StudentReport is the assembled per-student response: the engine output plus
// the ingestion diagnostics and cohort caveats that apply to the student.
type StudentReport struct {
	RecommendationResult
	IngestionDiagnostics []Diagnostic `json:"ingestion_diagnostics,omitempty"`
	CohortCaveats        []Diagnostic `json:"cohort_caveats,omitempty"`
}
