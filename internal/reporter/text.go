package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/pkg/config"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"
)

// statusOrder fixes the order statuses are listed in the summary.
var statusOrder = []models.Status{
	models.StatusPass,
	models.StatusFail,
	models.StatusError,
	models.StatusNormal,
	models.StatusAnomaly,
	models.StatusInsufficientData,
}

// WriteText writes a human-readable text report to stdout and, when an
// output directory is configured, report.txt.
func WriteText(report *models.Report, cfg *config.Config) error {
	return writeText(report, cfg, os.Stdout)
}

func writeText(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		outputPath := filepath.Join(cfg.OutputDir, "report.txt")
		if err := os.WriteFile(outputPath, []byte(renderTextReport(report, false)), 0644); err != nil {
			return fmt.Errorf("failed to write report.txt: %w", err)
		}
	}

	if _, err := io.WriteString(out, renderTextReport(report, supportsANSI(out))); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	return nil
}

func renderTextReport(report *models.Report, useANSI bool) string {
	var b strings.Builder

	run := report.Run
	writeTextSectionHeader(&b, "Table Health Report", useANSI)
	fmt.Fprintf(&b, "Run: %s\n", orUnknown(run.RunID))
	fmt.Fprintf(&b, "Status: %s\n", orUnknown(string(run.Status)))
	if !run.StartTime.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n", run.StartTime.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	if report.Summary.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", report.Summary.Duration)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.ErrorMessage)
	}
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Summary", useANSI)
	fmt.Fprintf(&b, "Tables checked: %d\n", report.Summary.Tables)
	fmt.Fprintf(&b, "Results: %d\n", report.Summary.TotalChecks)
	for _, status := range statusOrder {
		if n := report.Summary.ByStatus[status]; n > 0 {
			fmt.Fprintf(&b, "  %-18s %d\n", status+":", n)
		}
	}
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Results", useANSI)
	if len(report.Results) == 0 {
		b.WriteString("No checks were run.\n")
	} else {
		b.WriteString("TABLE                          STATUS             METRIC            VALUE      CHECK\n")
		b.WriteString("----------------------------------------------------------------------------------------------\n")
		for _, r := range sortedResults(report.Results) {
			check := r.CheckName
			if r.GroupValues != "" {
				check += " " + r.GroupValues
			}
			fmt.Fprintf(&b, "%-30s %-18s %-17s %-10s %s\n",
				truncateTextValue(r.FullTableName(), 30),
				r.Status,
				truncateTextValue(r.MetricName, 17),
				formatValue(r.MetricValue),
				check,
			)
		}
	}

	failing := report.FailingResults()
	if len(failing) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Details", useANSI)
		for _, r := range sortedResults(failing) {
			fmt.Fprintf(&b, "%s | %s | %s\n", r.FullTableName(), r.CheckName, r.Status)
			if r.GroupValues != "" {
				fmt.Fprintf(&b, "  group: %s\n", r.GroupValues)
			}
			switch r.Status {
			case models.StatusError:
				fmt.Fprintf(&b, "  error: %s\n", r.ErrorMessage)
			case models.StatusAnomaly:
				fmt.Fprintf(&b, "  %s=%s expected=%s threshold=%g\n", r.MetricName, formatValue(r.MetricValue), formatValue(r.ExpectedValue), r.Threshold)
			default:
				fmt.Fprintf(&b, "  %s=%s threshold=%g\n", r.MetricName, formatValue(r.MetricValue), r.Threshold)
			}
			if r.FilterCondition != "" {
				fmt.Fprintf(&b, "  filter: %s\n", r.FilterCondition)
			}
		}
	}

	return b.String()
}

func writeTextSectionHeader(b *strings.Builder, title string, useANSI bool) {
	header := title
	if useANSI {
		header = textANSIBold + title + textANSIReset
	}
	fmt.Fprintf(b, "%s\n", header)
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", len(title)))
}

func supportsANSI(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

// sortedResults orders by table and keeps run order within a table.
func sortedResults(results []models.CheckResult) []models.CheckResult {
	sorted := append([]models.CheckResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FullTableName() < sorted[j].FullTableName()
	})
	return sorted
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func truncateTextValue(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}
