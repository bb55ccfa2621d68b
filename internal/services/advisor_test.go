package services

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specadvisor/internal/config"
	"specadvisor/internal/normalizer"
	"specadvisor/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAdvisor() *Advisor {
	cfg := config.Default()
	return NewAdvisor(cfg.Scoring, cfg.Specialties, nil, testLogger())
}

const uploadCSV = `Matricule,SYS1,SYS2,RES1,RES2,ANUM,RO,ORG,LANG1,IGL,THP,MCSI,BDD,SEC,CPROJ,PROJ,LANG2,ARCH,Rang S1,Moy S1,Rang S2,Moy S2,Rang
22-0001,18,15,16,13,12.5,11,13,14,15,10,12,16,9,13,14,11,10,1,17,1,15,1
22-0002,12,11,10,12,11,10,12,13,11,9,10,12,8,11,12,10,9,2,12,2,11.5,2
22-0003,14,13,12,14,13,12,14,15,13,11,12,14,10,13,14,12,11,3,13,3,12.5,3
`

func TestProcessUploadCSV(t *testing.T) {
	advisor := testAdvisor()

	result, err := advisor.ProcessUpload(context.Background(), strings.NewReader(uploadCSV), "grades.csv", "2025")
	require.NoError(t, err)

	require.Len(t, result.Batch.Students, 3)
	assert.Equal(t, "2025", result.Batch.Promotion)
	assert.Equal(t, 3, result.Stats.Size)

	// One report per student, in row order, each fully scored.
	require.Len(t, result.Reports, 3)
	for i, rep := range result.Reports {
		assert.Equal(t, result.Batch.Students[i].ID, rep.StudentID)
		assert.Len(t, rep.Scores, 4, rep.StudentID)
		assert.NotEmpty(t, rep.Top())
	}
}

func TestProcessUploadUnsupportedExtension(t *testing.T) {
	advisor := testAdvisor()

	_, err := advisor.ProcessUpload(context.Background(), strings.NewReader("x"), "grades.pdf", "2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")
}

func TestProcessUploadRejectsUnreadableFile(t *testing.T) {
	advisor := testAdvisor()

	_, err := advisor.ProcessUpload(context.Background(), strings.NewReader("not a workbook"), "grades.xlsx", "2025")
	assert.Error(t, err)
}

func TestRecommendBatchBlendsPriors(t *testing.T) {
	advisor := testAdvisor()
	ctx := context.Background()

	current, err := advisor.normalizer.Normalize(rowsFromCSV(t, uploadCSV), "2025")
	require.NoError(t, err)

	priorCSV := strings.ReplaceAll(uploadCSV, "22-", "21-")
	prior, err := advisor.normalizer.Normalize(rowsFromCSV(t, priorCSV), "2024")
	require.NoError(t, err)

	withPrior, _, err := advisor.RecommendBatch(ctx, *current, []domain.PromotionBatch{*prior})
	require.NoError(t, err)
	without, _, err := advisor.RecommendBatch(ctx, *current, nil)
	require.NoError(t, err)

	// Prior promotion holds identical grades, so blended means match but
	// sample counts double.
	assert.InDelta(t, without.Subjects["SYS1"].Mean, withPrior.Subjects["SYS1"].Mean, 1e-9)
	assert.Equal(t, 2*without.Subjects["SYS1"].Count, withPrior.Subjects["SYS1"].Count)
}

func TestRecommendBatchHonorsCancellation(t *testing.T) {
	advisor := testAdvisor()

	batch, err := advisor.normalizer.Normalize(rowsFromCSV(t, uploadCSV), "2025")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = advisor.RecommendBatch(ctx, *batch, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecommendBatchDeterministic(t *testing.T) {
	advisor := testAdvisor()
	ctx := context.Background()

	batch, err := advisor.normalizer.Normalize(rowsFromCSV(t, uploadCSV), "2025")
	require.NoError(t, err)

	stats1, reports1, err := advisor.RecommendBatch(ctx, *batch, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		stats2, reports2, err := advisor.RecommendBatch(ctx, *batch, nil)
		require.NoError(t, err)
		assert.Equal(t, stats1, stats2)
		assert.Equal(t, reports1, reports2)
	}
}

func rowsFromCSV(t *testing.T, data string) []normalizer.RawRow {
	t.Helper()
	rows, err := readRows(strings.NewReader(data), "grades.csv")
	require.NoError(t, err)
	return rows
}
