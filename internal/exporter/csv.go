// Package exporter renders recommendation reports as CSV for download.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"specadvisor/pkg/contracts/domain"
)

// Options configures CSV rendering.
type Options struct {
	// BOMPrefix adds a UTF-8 BOM so Excel opens the file correctly.
	BOMPrefix bool
	// TopOnly writes one row per student (their best specialty) instead of
	// one row per scored specialty.
	TopOnly bool
}

var header = []string{"matricule", "promotion", "rank", "specialty", "score", "raw_affinity", "redistributed"}

// WriteReports writes recommendation reports to w.
func WriteReports(w io.Writer, reports []domain.StudentReport, opts Options) error {
	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rep := range reports {
		limit := len(rep.Scores)
		if opts.TopOnly && limit > 1 {
			limit = 1
		}
		if limit == 0 {
			// Unscored students still appear in the export, with the reason.
			reason := ""
			if len(rep.Diagnostics) > 0 {
				reason = rep.Diagnostics[0].Code
			}
			if err := cw.Write([]string{rep.StudentID, rep.Promotion, "", reason, "", "", ""}); err != nil {
				return fmt.Errorf("write row for %s: %w", rep.StudentID, err)
			}
			continue
		}
		for i := 0; i < limit; i++ {
			sc := rep.Scores[i]
			row := []string{
				rep.StudentID,
				rep.Promotion,
				strconv.Itoa(i + 1),
				sc.Specialty,
				strconv.FormatFloat(sc.Score, 'f', 2, 64),
				strconv.FormatFloat(sc.RawAffinity, 'f', 4, 64),
				strconv.FormatBool(sc.Redistributed),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write row for %s: %w", rep.StudentID, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
