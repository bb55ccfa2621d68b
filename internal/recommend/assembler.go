package recommend

import (
	"specadvisor/pkg/contracts/domain"
)

// Assemble packages one student's engine output with the ingestion
// diagnostics that applied to their row and the cohort-level caveats. Pure
// aggregation, no new computation.
func Assemble(res domain.RecommendationResult, batch *domain.PromotionBatch, stats domain.CohortStatistics) domain.StudentReport {
	report := domain.StudentReport{RecommendationResult: res}
	if batch != nil {
		report.IngestionDiagnostics = batch.StudentDiagnostics(res.StudentID)
	}
	report.CohortCaveats = append(report.CohortCaveats, stats.Caveats...)
	return report
}

// AssembleBatch assembles reports for a whole result set, preserving order.
func AssembleBatch(results []domain.RecommendationResult, batch *domain.PromotionBatch, stats domain.CohortStatistics) []domain.StudentReport {
	reports := make([]domain.StudentReport, 0, len(results))
	for _, res := range results {
		reports = append(reports, Assemble(res, batch, stats))
	}
	return reports
}
