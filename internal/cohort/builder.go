// Package cohort computes the per-promotion statistical baseline that
// individual students are scored against. Statistics are always rebuilt
// wholesale from their inputs; nothing here mutates shared state.
package cohort

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"specadvisor/internal/recommend"
	"specadvisor/internal/schema"
	"specadvisor/pkg/contracts/domain"
)

// Builder derives cohort statistics for promotion batches.
type Builder struct {
	opts   domain.ScoringOptions
	logger *slog.Logger
}

// NewBuilder creates a builder with the given scoring options.
func NewBuilder(opts domain.ScoringOptions, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{opts: opts, logger: logger}
}

// Build computes per-subject and per-specialty statistics for a promotion.
// Prior batches, when supplied, are blended in with the configured historical
// weight (more recent data weighted higher) instead of being pooled, so the
// baseline adapts gradually regardless of historical data volume. Build is
// deterministic: identical inputs yield identical output.
func (b *Builder) Build(batch domain.PromotionBatch, priors []domain.PromotionBatch, profiles []domain.SpecialtyProfile) domain.CohortStatistics {
	stats := domain.CohortStatistics{
		Promotion: batch.Promotion,
		Size:      len(batch.Students),
		Subjects:  b.subjectStats(batch),
		Baselines: make(map[string]domain.BaselineStats),
	}

	if len(priors) > 0 && b.opts.HistoricalBlendWeight > 0 {
		stats.Subjects = b.blendHistorical(stats.Subjects, priors)
	}

	// Caveats in fixed subject order so rebuilds are bit-identical.
	for _, subject := range schema.Subjects {
		if s, ok := stats.Subjects[subject]; ok && s.Floored {
			stats.Caveats = append(stats.Caveats, domain.Diagnostic{
				Column:   subject,
				Severity: domain.SeverityWarning,
				Code:     domain.DiagStdDevFloored,
				Message:  fmt.Sprintf("subject %s has %d valid sample(s); stddev floor %g used", subject, s.Count, b.opts.MinStdDevFloor),
			})
		}
	}

	sorted := make([]domain.SpecialtyProfile, len(profiles))
	copy(sorted, profiles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, profile := range sorted {
		base, caveat := b.baseline(batch, stats, profile)
		stats.Baselines[profile.Name] = base
		if caveat != nil {
			stats.Caveats = append(stats.Caveats, *caveat)
		}
	}

	b.logger.Info("built cohort statistics",
		slog.String("promotion", batch.Promotion),
		slog.Int("students", stats.Size),
		slog.Int("subjects", len(stats.Subjects)),
		slog.Int("prior_batches", len(priors)),
		slog.Int("caveats", len(stats.Caveats)))

	return stats
}

// subjectStats computes mean and stddev over each subject's valid grades.
// Flagged (out of range) grades are excluded here but stay on the records.
func (b *Builder) subjectStats(batch domain.PromotionBatch) map[string]domain.SubjectStats {
	out := make(map[string]domain.SubjectStats)
	for _, subject := range schema.Subjects {
		var grades []float64
		for _, rec := range batch.Students {
			if g, ok := rec.Grade(subject); ok {
				grades = append(grades, g)
			}
		}
		if len(grades) == 0 {
			continue
		}
		mean, sd := moments(grades)
		s := domain.SubjectStats{Mean: mean, StdDev: sd, Count: len(grades)}
		if len(grades) < 2 {
			s.StdDev = b.opts.MinStdDevFloor
			s.Floored = true
		}
		out[subject] = s
	}
	return out
}

// blendHistorical folds prior batches into the current subject statistics.
// Priors are expected oldest first; each fold keeps (1-w) of the newer side,
// and the current batch is blended last. Subjects absent from the current
// curriculum are dropped.
func (b *Builder) blendHistorical(current map[string]domain.SubjectStats, priors []domain.PromotionBatch) map[string]domain.SubjectStats {
	w := b.opts.HistoricalBlendWeight

	hist := b.subjectStats(priors[0])
	for _, p := range priors[1:] {
		hist = blendStats(b.subjectStats(p), hist, w)
	}

	return blendStats(current, hist, w)
}

// blendStats combines newer and older statistics as (1-w)*newer + w*older,
// per subject. Subjects the newer side does not have are dropped; subjects
// the older side does not have pass through unchanged.
func blendStats(newer, older map[string]domain.SubjectStats, w float64) map[string]domain.SubjectStats {
	out := make(map[string]domain.SubjectStats, len(newer))
	for subject, cur := range newer {
		prev, ok := older[subject]
		if !ok {
			out[subject] = cur
			continue
		}
		out[subject] = domain.SubjectStats{
			Mean:    (1-w)*cur.Mean + w*prev.Mean,
			StdDev:  (1-w)*cur.StdDev + w*prev.StdDev,
			Count:   cur.Count + prev.Count,
			Floored: cur.Floored,
		}
	}
	return out
}

// baseline applies the engine's scoring formula to every scoreable student
// and records the distribution, giving the reference frame that makes
// display scores comparable across specialties.
func (b *Builder) baseline(batch domain.PromotionBatch, stats domain.CohortStatistics, profile domain.SpecialtyProfile) (domain.BaselineStats, *domain.Diagnostic) {
	var scores []float64
	for _, rec := range batch.Students {
		if !rec.Scoreable() {
			continue
		}
		aff, ok := recommend.Affinity(rec, stats.Subjects, profile)
		if !ok {
			continue
		}
		combined := aff.Raw + recommend.GlobalTerm(rec.OverallRank, stats.Size, b.opts.GlobalWeight)
		scores = append(scores, combined)
	}

	mean, sd := moments(scores)
	base := domain.BaselineStats{Mean: mean, StdDev: sd, Count: len(scores)}
	if len(scores) < 2 {
		base.StdDev = b.opts.MinStdDevFloor
		base.Floored = true
		return base, &domain.Diagnostic{
			Severity: domain.SeverityWarning,
			Code:     domain.DiagStdDevFloored,
			Message:  fmt.Sprintf("specialty %s baseline has %d sample(s); stddev floor %g used", profile.Name, len(scores), b.opts.MinStdDevFloor),
		}
	}
	return base, nil
}

// moments returns the mean and population standard deviation.
func moments(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
