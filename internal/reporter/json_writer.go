package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/pkg/config"
)

// WriteJSON writes the report as indented JSON to stdout and report.json
func WriteJSON(report *models.Report, cfg *config.Config) error {
	return writeJSON(report, cfg, os.Stdout)
}

func writeJSON(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// Marshal report to JSON with pretty printing
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	data = append(data, '\n')

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		outputPath := filepath.Join(cfg.OutputDir, "report.json")
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report.json: %w", err)
		}
		slog.Debug("report written", slog.String("path", outputPath))
	}

	if out != nil {
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("failed to write JSON report to output: %w", err)
		}
	}
	return nil
}
