// Command advisor runs the pipeline once over a local spreadsheet and writes
// the recommendations as CSV, without touching a database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"specadvisor/internal/config"
	"specadvisor/internal/exporter"
	"specadvisor/internal/services"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to configuration file (optional)")
		filePath   = flag.String("file", "", "promotion spreadsheet (CSV or XLSX)")
		promotion  = flag.String("promo", "", "promotion identifier, e.g. 2025")
		outPath    = flag.String("out", "", "output CSV path (default stdout)")
		topOnly    = flag.Bool("top", false, "only export each student's best specialty")
	)
	flag.Parse()

	if *filePath == "" || *promotion == "" {
		fmt.Fprintln(os.Stderr, "usage: advisor -file grades.xlsx -promo 2025 [-out results.csv]")
		os.Exit(2)
	}

	if err := run(*configPath, *filePath, *promotion, *outPath, *topOnly); err != nil {
		fmt.Fprintf(os.Stderr, "advisor: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, filePath, promotion, outPath string, topOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	advisor := services.NewAdvisor(cfg.Scoring, cfg.Specialties, nil, logger)
	result, err := advisor.ProcessUpload(context.Background(), f, filePath, promotion)
	if err != nil {
		return err
	}

	for _, d := range result.Batch.Diagnostics {
		logger.Warn("diagnostic",
			slog.Int("row", d.Row),
			slog.String("code", d.Code),
			slog.String("message", d.Message))
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		of, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer of.Close()
		out = of
	}

	return exporter.WriteReports(out, result.Reports, exporter.Options{TopOnly: topOnly})
}
