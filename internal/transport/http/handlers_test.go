package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specadvisor/internal/config"
	"specadvisor/internal/services"
	"specadvisor/internal/store"
	"specadvisor/pkg/contracts/domain"
)

const uploadCSV = `Matricule,SYS1,SYS2,RES1,RES2,ANUM,RO,ORG,LANG1,IGL,THP,MCSI,BDD,SEC,CPROJ,PROJ,LANG2,ARCH,Rang S1,Moy S1,Rang S2,Moy S2,Rang
22-0001,18,15,16,13,12.5,11,13,14,15,10,12,16,9,13,14,11,10,1,17,1,15,1
22-0002,12,11,10,12,11,10,12,13,11,9,10,12,8,11,12,10,9,2,12,2,11.5,2
22-0003,14,13,12,14,13,12,14,15,13,11,12,14,10,13,14,12,11,3,13,3,12.5,3
`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.Open(filepath.Join(t.TempDir(), "advisor.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	cfg := config.Default()
	advisor := services.NewAdvisor(cfg.Scoring, cfg.Specialties, st, logger)

	srv := httptest.NewServer(NewRouter(advisor, cfg.Server, logger))
	t.Cleanup(srv.Close)
	return srv
}

func uploadFile(t *testing.T, srv *httptest.Server, promo, filename, content string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("promo", promo))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/upload/student-data", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadAndFetchRecommendations(t *testing.T) {
	srv := testServer(t)

	resp := uploadFile(t, srv, "2025", "grades.csv", uploadCSV)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var up UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	assert.Equal(t, "2025", up.Promotion)
	assert.Equal(t, 3, up.Students)
	assert.Equal(t, 3, up.Scored)

	recResp, err := http.Get(srv.URL + "/api/students/2025/recommendations")
	require.NoError(t, err)
	defer recResp.Body.Close()
	require.Equal(t, http.StatusOK, recResp.StatusCode)

	var reports []domain.StudentReport
	require.NoError(t, json.NewDecoder(recResp.Body).Decode(&reports))
	require.Len(t, reports, 3)
	for _, rep := range reports {
		assert.NotEmpty(t, rep.Scores, rep.StudentID)
	}
}

func TestUploadReplacesPromotion(t *testing.T) {
	srv := testServer(t)

	resp := uploadFile(t, srv, "2025", "grades.csv", uploadCSV)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	single := strings.Join(strings.SplitAfterN(uploadCSV, "\n", 3)[:2], "")
	resp = uploadFile(t, srv, "2025", "grades2.csv", single)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	recResp, err := http.Get(srv.URL + "/api/students/2025/recommendations")
	require.NoError(t, err)
	defer recResp.Body.Close()

	var reports []domain.StudentReport
	require.NoError(t, json.NewDecoder(recResp.Body).Decode(&reports))
	assert.Len(t, reports, 1)
}

func TestUploadValidation(t *testing.T) {
	srv := testServer(t)

	t.Run("missing promo", func(t *testing.T) {
		resp := uploadFile(t, srv, "", "grades.csv", uploadCSV)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing file", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("promo", "2025"))
		require.NoError(t, mw.Close())

		resp, err := http.Post(srv.URL+"/api/upload/student-data", mw.FormDataContentType(), &body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unusable file", func(t *testing.T) {
		resp := uploadFile(t, srv, "2025", "grades.csv", "Nom,Prenom\na,b\n")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestRecommendationsNotFound(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/students/1999/recommendations")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportCSV(t *testing.T) {
	srv := testServer(t)

	resp := uploadFile(t, srv, "2025", "grades.csv", uploadCSV)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	expResp, err := http.Get(srv.URL + "/api/students/2025/recommendations/export?top=true")
	require.NoError(t, err)
	defer expResp.Body.Close()

	require.Equal(t, http.StatusOK, expResp.StatusCode)
	assert.Contains(t, expResp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, expResp.Header.Get("Content-Disposition"), "recommendations_2025.csv")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(expResp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4) // header + one top row per student
}

func TestListPromotionsAndDashboard(t *testing.T) {
	srv := testServer(t)

	resp := uploadFile(t, srv, "2024", "old.csv", uploadCSV)
	resp.Body.Close()
	resp = uploadFile(t, srv, "2025", "new.csv", strings.ReplaceAll(uploadCSV, "22-", "23-"))
	resp.Body.Close()

	promoResp, err := http.Get(srv.URL + "/api/promotions")
	require.NoError(t, err)
	defer promoResp.Body.Close()

	var infos []store.PromotionInfo
	require.NoError(t, json.NewDecoder(promoResp.Body).Decode(&infos))
	require.Len(t, infos, 2)

	dashResp, err := http.Get(srv.URL + "/api/dashboard/stats?promos=2025")
	require.NoError(t, err)
	defer dashResp.Body.Close()

	var stats store.DashboardStats
	require.NoError(t, json.NewDecoder(dashResp.Body).Decode(&stats))
	assert.Equal(t, 3, stats.TotalStudents)
	assert.NotEmpty(t, stats.SpecialtyDistribution)
}
