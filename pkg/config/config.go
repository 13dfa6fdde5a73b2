package config

import (
	"fmt"
	"strings"
	"time"
)

// Check category filters accepted by --checks
const (
	CategoryAll         = "all"
	CategoryNull        = "null_checks"
	CategoryUniqueness  = "uniqueness_checks"
	CategoryConditional = "conditional_checks"
	CategoryAnomaly     = "anomaly_detection"
)

// Categories lists every accepted category filter value.
var Categories = []string{
	CategoryAll,
	CategoryNull,
	CategoryUniqueness,
	CategoryConditional,
	CategoryAnomaly,
}

// Config holds all runtime configuration
type Config struct {
	// Warehouse settings
	WarehouseDSN string
	Concurrency  int
	// QueriesPerSecond caps the warehouse query rate across workers; 0 disables the cap.
	QueriesPerSecond float64
	MaxAttempts      int
	BackoffUnit      time.Duration
	RunTimeout       time.Duration

	// Sink settings; an empty SinkDSN reuses the warehouse connection.
	SinkDSN      string
	ResultsTable string
	HistoryTable string
	RunsTable    string

	// Check selection
	ChecksPath      string
	Category        string
	ExcludeTables   []string
	ExcludeDatasets []string

	// Output settings
	OutputDir string
	Format    string

	// Metrics endpoint, empty to disable
	MetricsAddr string

	// Operational flags. DryRun still queries the warehouse and reads
	// row-count history from the sink but keeps every write in memory.
	Verbose bool
	DryRun  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Concurrency:      4,
		QueriesPerSecond: 0,
		MaxAttempts:      3,
		BackoffUnit:      time.Second,
		RunTimeout:       0,
		ResultsTable:     "data_quality.data_quality_results",
		HistoryTable:     "data_quality.row_count_history",
		RunsTable:        "data_quality.data_quality_runs",
		Category:         CategoryAll,
		ExcludeTables:    []string{},
		ExcludeDatasets:  []string{},
		OutputDir:        "",
		Format:           "text",
		MetricsAddr:      "",
		Verbose:          false,
		DryRun:           false,
	}
}

// Validate checks runtime settings that flags and files cannot express
// through types alone.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(c.WarehouseDSN) == "" {
		return fmt.Errorf("warehouse DSN is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BackoffUnit < 0 {
		return fmt.Errorf("backoff unit must not be negative, got %s", c.BackoffUnit)
	}
	if c.QueriesPerSecond < 0 {
		return fmt.Errorf("queries per second must not be negative, got %v", c.QueriesPerSecond)
	}
	if !ValidCategory(c.Category) {
		return fmt.Errorf("invalid check category %q, expected one of %s", c.Category, strings.Join(Categories, ", "))
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid format %q, expected json or text", c.Format)
	}
	return nil
}

// EffectiveSinkDSN returns the DSN results are written to.
func (c *Config) EffectiveSinkDSN() string {
	if dsn := strings.TrimSpace(c.SinkDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(c.WarehouseDSN)
}

// ValidCategory reports whether category is an accepted --checks value.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// IncludesCategory reports whether the configured filter selects category.
func (c *Config) IncludesCategory(category string) bool {
	return c.Category == CategoryAll || c.Category == category
}
