package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"specadvisor/internal/config"
	apierrors "specadvisor/internal/errors"
	"specadvisor/internal/exporter"
	"specadvisor/internal/services"
	"specadvisor/internal/store"
)

// Handler serves the advisor API endpoints.
type Handler struct {
	advisor *services.Advisor
	cfg     config.Server
	logger  *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(advisor *services.Advisor, cfg config.Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{advisor: advisor, cfg: cfg, logger: logger.With(slog.String("component", "http"))}
}

// UploadResponse summarizes a processed upload.
type UploadResponse struct {
	Promotion   string `json:"promotion"`
	Students    int    `json:"students"`
	Diagnostics int    `json:"diagnostics"`
	Scored      int    `json:"scored"`
}

// Upload ingests a multipart CSV/XLSX upload for one promotion.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		apierrors.WriteError(w, apierrors.InvalidRequestWithError(err))
		return
	}

	promotion := strings.TrimSpace(r.FormValue("promo"))
	if promotion == "" {
		apierrors.WriteError(w, apierrors.NewWithDetails(http.StatusBadRequest,
			"MISSING_PARAMETER", "Required parameter is missing", "promo"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.WriteError(w, apierrors.NewWithDetails(http.StatusBadRequest,
			"MISSING_PARAMETER", "Required parameter is missing", "file"))
		return
	}
	defer file.Close()

	result, err := h.advisor.ProcessUpload(r.Context(), file, header.Filename, promotion)
	if err != nil {
		h.logger.Error("upload failed",
			slog.String("promotion", promotion),
			slog.String("file", header.Filename),
			slog.Any("error", err))
		apierrors.WriteError(w, apierrors.UnprocessableFile(err))
		return
	}

	scored := 0
	for _, rep := range result.Reports {
		if len(rep.Scores) > 0 {
			scored++
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{
		Promotion:   result.Batch.Promotion,
		Students:    len(result.Batch.Students),
		Diagnostics: len(result.Batch.Diagnostics),
		Scored:      scored,
	})
}

// Recommendations returns the stored reports for a promotion.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	promotion := chi.URLParam(r, "promotion")
	reports, err := h.advisor.Store().GetReports(r.Context(), promotion)
	if err != nil {
		h.writeStoreError(w, promotion, err)
		return
	}
	render.JSON(w, r, reports)
}

// Export streams the stored reports for a promotion as CSV.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	promotion := chi.URLParam(r, "promotion")
	reports, err := h.advisor.Store().GetReports(r.Context(), promotion)
	if err != nil {
		h.writeStoreError(w, promotion, err)
		return
	}

	opts := exporter.Options{BOMPrefix: true, TopOnly: r.URL.Query().Get("top") == "true"}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "recommendations_"+promotion+".csv"))
	if err := exporter.WriteReports(w, reports, opts); err != nil {
		h.logger.Error("export failed", slog.String("promotion", promotion), slog.Any("error", err))
	}
}

// ListPromotions lists every uploaded promotion.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	infos, err := h.advisor.Store().ListPromotions(r.Context())
	if err != nil {
		h.logger.Error("list promotions failed", slog.Any("error", err))
		apierrors.WriteError(w, apierrors.ErrInternalServer)
		return
	}
	render.JSON(w, r, infos)
}

// Dashboard aggregates stored data, optionally filtered by ?promos=a,b.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var promotions []string
	if raw := r.URL.Query().Get("promos"); raw != "" {
		promotions = strings.Split(raw, ",")
	}
	stats, err := h.advisor.Store().Dashboard(r.Context(), promotions)
	if err != nil {
		h.logger.Error("dashboard failed", slog.Any("error", err))
		apierrors.WriteError(w, apierrors.ErrInternalServer)
		return
	}
	render.JSON(w, r, stats)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, promotion string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		apierrors.WriteError(w, apierrors.NotFoundError("promotion "+promotion))
		return
	}
	h.logger.Error("store lookup failed", slog.String("promotion", promotion), slog.Any("error", err))
	apierrors.WriteError(w, apierrors.ErrInternalServer)
}
