// Package reporter writes the summary of a run as JSON or text.
package reporter

import (
	"io"
	"os"

	"github.com/ppiankov/tablespectre/internal/models"
	"github.com/ppiankov/tablespectre/pkg/config"
)

// Reporter interface for generating reports
type Reporter interface {
	Generate(report *models.Report) error
}

// reporter implements the Reporter interface
type reporter struct {
	config *config.Config
	out    io.Writer
}

// New creates a reporter printing to stdout and, when cfg.OutputDir is
// set, also writing report.json or report.txt there.
func New(cfg *config.Config) Reporter {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New printing to out instead of stdout.
func NewWithWriter(cfg *config.Config, out io.Writer) Reporter {
	return &reporter{
		config: cfg,
		out:    out,
	}
}

// Generate writes report in the configured format
func (r *reporter) Generate(report *models.Report) error {
	if r.config.Format == "json" {
		return writeJSON(report, r.config, r.out)
	}
	return writeText(report, r.config, r.out)
}
