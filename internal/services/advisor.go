// Package services orchestrates the ingestion and recommendation pipeline
// for the HTTP transport and the CLI.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"specadvisor/internal/cohort"
	"specadvisor/internal/normalizer"
	"specadvisor/internal/recommend"
	"specadvisor/internal/store"
	"specadvisor/pkg/contracts/domain"
)

// Advisor runs the full pipeline: file -> batch -> statistics -> reports.
// Scoring individual students has no shared mutable state, so the per-student
// fan-out below is safe; statistics are always fully built before any
// student is scored against them.
type Advisor struct {
	normalizer  *normalizer.Normalizer
	builder     *cohort.Builder
	engine      *recommend.Engine
	store       *store.Store
	profiles    []domain.SpecialtyProfile
	logger      *slog.Logger
	concurrency int
}

// NewAdvisor wires the pipeline. The store may be nil for one-shot runs that
// do not persist anything.
func NewAdvisor(opts domain.ScoringOptions, profiles []domain.SpecialtyProfile, st *store.Store, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{
		normalizer:  normalizer.New(logger),
		builder:     cohort.NewBuilder(opts, logger),
		engine:      recommend.NewEngine(opts, logger),
		store:       st,
		profiles:    profiles,
		logger:      logger,
		concurrency: 4,
	}
}

// UploadResult is the outcome of one processed upload.
type UploadResult struct {
	Batch   *domain.PromotionBatch  `json:"batch"`
	Stats   domain.CohortStatistics `json:"stats"`
	Reports []domain.StudentReport  `json:"reports"`
}

// ProcessUpload ingests one uploaded spreadsheet for a promotion, persists
// the batch (replacing any prior upload for the promotion), scores every
// student and persists the reports.
func (a *Advisor) ProcessUpload(ctx context.Context, r io.Reader, filename, promotion string) (*UploadResult, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	batch, err := a.normalizer.Normalize(rows, promotion)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", filename, err)
	}

	if a.store != nil {
		if err := a.store.ReplacePromotion(ctx, batch, filepath.Base(filename)); err != nil {
			return nil, err
		}
	}

	stats, reports, err := a.RecommendBatch(ctx, *batch, nil)
	if err != nil {
		return nil, err
	}

	if a.store != nil {
		if err := a.store.SaveReports(ctx, batch.Promotion, reports); err != nil {
			return nil, err
		}
	}

	return &UploadResult{Batch: batch, Stats: stats, Reports: reports}, nil
}

// RecommendBatch builds the cohort statistics for a batch (blending priors
// when given) and scores every student, fanned out across a bounded worker
// group. Report order follows the batch's original row order.
func (a *Advisor) RecommendBatch(ctx context.Context, batch domain.PromotionBatch, priors []domain.PromotionBatch) (domain.CohortStatistics, []domain.StudentReport, error) {
	stats := a.builder.Build(batch, priors, a.profiles)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	results := make([]domain.RecommendationResult, len(batch.Students))
	for i, rec := range batch.Students {
		i, rec := i, rec
		g.Go(func() error {
			// Each scoring call is an atomic fast unit; cancellation is
			// honored between students.
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = a.engine.Recommend(rec, stats, a.profiles)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, nil, fmt.Errorf("score batch %s: %w", batch.Promotion, err)
	}

	reports := recommend.AssembleBatch(results, &batch, stats)

	a.logger.Info("scored promotion",
		slog.String("promotion", batch.Promotion),
		slog.Int("students", len(reports)))

	return stats, reports, nil
}

// Store exposes the persistence layer to the transport handlers.
func (a *Advisor) Store() *store.Store {
	return a.store
}

func readRows(r io.Reader, filename string) ([]normalizer.RawRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return normalizer.ReadCSV(r)
	case ".xlsx", ".xls", ".xlsm":
		return normalizer.ReadXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(filename))
	}
}
