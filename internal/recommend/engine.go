// Package recommend scores candidate specialties for a student against the
// cohort's statistical baseline and assembles per-student reports.
package recommend

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"specadvisor/pkg/contracts/domain"
)

// AffinityResult is the raw weighted z-score affinity of one student for one
// specialty profile, before the global-performance blend.
type AffinityResult struct {
	Raw           float64
	Entries       []domain.RationaleEntry
	Redistributed bool
	Missing       []string
}

// Affinity computes the weighted sum of standardized grades over a profile's
// subject set. Subjects absent from the record (missing, flagged, or without
// cohort statistics) are excluded and their weight is redistributed
// proportionally, so the weights actually used always sum to 1. Reports
// false when no subject of the profile is available at all.
func Affinity(rec domain.StudentRecord, subjects map[string]domain.SubjectStats, profile domain.SpecialtyProfile) (AffinityResult, bool) {
	codes := make([]string, 0, len(profile.Weights))
	for code := range profile.Weights {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var res AffinityResult
	usedTotal := 0.0
	type avail struct {
		code   string
		grade  float64
		weight float64
	}
	var available []avail

	for _, code := range codes {
		grade, ok := rec.Grade(code)
		stats, hasStats := subjects[code]
		if !ok || !hasStats || stats.Count == 0 {
			res.Missing = append(res.Missing, code)
			continue
		}
		available = append(available, avail{code: code, grade: grade, weight: profile.Weights[code]})
		usedTotal += profile.Weights[code]
	}

	if len(available) == 0 || usedTotal <= 0 {
		return AffinityResult{Missing: res.Missing}, false
	}
	res.Redistributed = len(res.Missing) > 0

	for _, a := range available {
		stats := subjects[a.code]
		w := a.weight / usedTotal
		z := 0.0
		if stats.StdDev > 0 {
			z = (a.grade - stats.Mean) / stats.StdDev
		}
		res.Raw += w * z
		res.Entries = append(res.Entries, domain.RationaleEntry{
			Subject:      a.code,
			Weight:       w,
			ZScore:       z,
			Contribution: w * z,
		})
	}

	return res, true
}

// GlobalTerm is the mild overall-standing blend: the student's ranking
// percentile within the promotion scaled by the configured global weight.
// Students without an overall ranking contribute nothing.
func GlobalTerm(rank *int, cohortSize int, weight float64) float64 {
	if rank == nil || cohortSize <= 0 || weight <= 0 {
		return 0
	}
	pct := 1 - float64(*rank-1)/float64(cohortSize)
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	return weight * pct
}

// Engine produces ranked specialty recommendations for single students.
type Engine struct {
	opts   domain.ScoringOptions
	logger *slog.Logger
}

// NewEngine creates an engine with the given scoring options.
func NewEngine(opts domain.ScoringOptions, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, logger: logger}
}

// Recommend scores every configured specialty for one student against the
// promotion's cohort statistics. Specialties that cannot be scored are
// omitted with a diagnostic; a student without a usable semester summary
// yields an empty list, never an error.
func (e *Engine) Recommend(rec domain.StudentRecord, stats domain.CohortStatistics, profiles []domain.SpecialtyProfile) domain.RecommendationResult {
	result := domain.RecommendationResult{StudentID: rec.ID, Promotion: rec.Promotion}

	if !rec.Scoreable() {
		result.Diagnostics = append(result.Diagnostics, domain.Diagnostic{
			StudentID: rec.ID,
			Severity:  domain.SeverityError,
			Code:      domain.DiagInsufficientData,
			Message:   "insufficient data: no usable semester summary",
		})
		return result
	}

	sorted := make([]domain.SpecialtyProfile, len(profiles))
	copy(sorted, profiles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, profile := range sorted {
		aff, ok := Affinity(rec, stats.Subjects, profile)
		if !ok {
			result.Diagnostics = append(result.Diagnostics, domain.Diagnostic{
				StudentID: rec.ID,
				Severity:  domain.SeverityWarning,
				Code:      domain.DiagScoringUndefined,
				Message:   fmt.Sprintf("specialty %s not scored: none of its subjects are available", profile.Name),
			})
			continue
		}

		global := GlobalTerm(rec.OverallRank, stats.Size, e.opts.GlobalWeight)
		combined := aff.Raw + global

		result.Scores = append(result.Scores, domain.SpecialtyScore{
			Specialty:     profile.Name,
			Score:         e.displayScore(combined, stats.Baselines[profile.Name]),
			RawAffinity:   aff.Raw,
			GlobalTerm:    global,
			Combined:      combined,
			Redistributed: aff.Redistributed,
			Missing:       aff.Missing,
			Rationale:     aff.Entries,
		})
	}

	sortScores(result.Scores)

	e.logger.Debug("scored student",
		slog.String("student", rec.ID),
		slog.String("promotion", rec.Promotion),
		slog.Int("specialties", len(result.Scores)),
		slog.String("top", result.Top()))

	return result
}

// displayScore maps the combined score onto the bounded display range using
// the cohort baseline: three standard deviations above the cohort mean hit
// the top of the range, three below hit the bottom.
func (e *Engine) displayScore(combined float64, base domain.BaselineStats) float64 {
	sd := base.StdDev
	if sd <= 0 {
		sd = e.opts.MinStdDevFloor
	}
	z := (combined - base.Mean) / sd

	mid := (e.opts.DisplayScoreMin + e.opts.DisplayScoreMax) / 2
	half := (e.opts.DisplayScoreMax - e.opts.DisplayScoreMin) / 2
	score := mid + z*half/3

	switch {
	case math.IsNaN(score) || math.IsInf(score, 0):
		return e.opts.DisplayScoreMin
	case score < e.opts.DisplayScoreMin:
		return e.opts.DisplayScoreMin
	case score > e.opts.DisplayScoreMax:
		return e.opts.DisplayScoreMax
	}
	return score
}

// sortScores orders by descending display score with deterministic
// tie-breaks: higher raw affinity, fewer missing-subject substitutions, then
// specialty name.
func sortScores(scores []domain.SpecialtyScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.RawAffinity != b.RawAffinity {
			return a.RawAffinity > b.RawAffinity
		}
		if len(a.Missing) != len(b.Missing) {
			return len(a.Missing) < len(b.Missing)
		}
		return a.Specialty < b.Specialty
	})
}
