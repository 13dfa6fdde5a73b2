package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical checks filename.
	DefaultConfigFileYAML = "tablespectre.yaml"
	// DefaultConfigFileYML is a compatible alternate checks filename.
	DefaultConfigFileYML = "tablespectre.yml"
	// LegacyConfigFile is the filename used by earlier releases.
	LegacyConfigFile = "config.yaml"
)

// ConfigError reports a checks file that cannot be read, parsed or validated.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid config: %v", e.Err)
	}
	return fmt.Sprintf("invalid config %q: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FileConfig represents a checks file.
type FileConfig struct {
	Settings *FileSettings `yaml:"settings"`
	Tables   []TableConfig `yaml:"tables" validate:"required,min=1,dive"`
}

// FileSettings carries runtime values that may live next to the checks.
// Command-line flags take precedence over them.
type FileSettings struct {
	WarehouseDSN     string   `yaml:"warehouse_dsn"`
	SinkDSN          string   `yaml:"sink_dsn"`
	ResultsTable     string   `yaml:"results_table"`
	HistoryTable     string   `yaml:"history_table"`
	RunsTable        string   `yaml:"runs_table"`
	Concurrency      *int     `yaml:"concurrency" validate:"omitempty,min=1"`
	QueriesPerSecond *float64 `yaml:"queries_per_second" validate:"omitempty,gte=0"`
	MaxAttempts      *int     `yaml:"max_attempts" validate:"omitempty,min=1"`
	BackoffUnit      string   `yaml:"backoff_unit"`
	Timeout          string   `yaml:"timeout"`
	ExcludeTables    []string `yaml:"exclude_tables"`
	ExcludeDatasets  []string `yaml:"exclude_datasets"`
}

// TableConfig lists the checks configured for one table.
type TableConfig struct {
	Dataset       string        `yaml:"dataset" validate:"required"`
	Table         string        `yaml:"table" validate:"required"`
	Checks        TableChecks   `yaml:"checks"`
	TrendAnalysis TrendAnalysis `yaml:"trend_analysis"`
}

// TableChecks groups the threshold checks of a table.
type TableChecks struct {
	NullChecks        []NullCheckConfig        `yaml:"null_checks" validate:"dive"`
	UniquenessChecks  []UniquenessCheckConfig  `yaml:"uniqueness_checks" validate:"dive"`
	ConditionalChecks []ConditionalCheckConfig `yaml:"conditional_checks" validate:"dive"`
}

type NullCheckConfig struct {
	Column    string   `yaml:"column" validate:"required"`
	Threshold *float64 `yaml:"threshold" validate:"required,gte=0"`
	Filter    string   `yaml:"filter"`
}

type UniquenessCheckConfig struct {
	Columns   []string `yaml:"columns" validate:"required,min=1,dive,required"`
	Threshold *float64 `yaml:"threshold" validate:"required,gte=0"`
	Filter    string   `yaml:"filter"`
}

type ConditionalCheckConfig struct {
	Condition   string   `yaml:"condition" validate:"required"`
	Description string   `yaml:"description"`
	Threshold   *float64 `yaml:"threshold" validate:"required,gte=0"`
	Filter      string   `yaml:"filter"`
}

// TrendAnalysis holds the row-count trend settings of a table.
type TrendAnalysis struct {
	GroupAnomalyDetection GroupAnomalyDetection `yaml:"group_anomaly_detection"`
}

// GroupAnomalyDetection holds table-level defaults and the group definitions.
type GroupAnomalyDetection struct {
	HistoricalDataPoints *int          `yaml:"historical_data_points" validate:"omitempty,min=1"`
	MinimumDataPoints    *int          `yaml:"minimum_data_points" validate:"omitempty,min=1"`
	Groups               []GroupConfig `yaml:"groups" validate:"dive"`
}

// GroupConfig is one group-by anomaly definition. Window sizes set here
// override the table-level values.
type GroupConfig struct {
	Columns              []string `yaml:"columns" validate:"required,min=1,dive,required"`
	AnomalyThreshold     *float64 `yaml:"anomaly_threshold" validate:"required,gte=0"`
	Filter               string   `yaml:"filter"`
	HistoricalDataPoints *int     `yaml:"historical_data_points" validate:"omitempty,min=1"`
	MinimumDataPoints    *int     `yaml:"minimum_data_points" validate:"omitempty,min=1"`
}

var fileValidator = newFileValidator()

func newFileValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims string fields and removes empty list items.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	if s := fc.Settings; s != nil {
		s.WarehouseDSN = strings.TrimSpace(s.WarehouseDSN)
		s.SinkDSN = strings.TrimSpace(s.SinkDSN)
		s.ResultsTable = strings.TrimSpace(s.ResultsTable)
		s.HistoryTable = strings.TrimSpace(s.HistoryTable)
		s.RunsTable = strings.TrimSpace(s.RunsTable)
		s.BackoffUnit = strings.TrimSpace(s.BackoffUnit)
		s.Timeout = strings.TrimSpace(s.Timeout)
		s.ExcludeTables = normalizeList(s.ExcludeTables)
		s.ExcludeDatasets = normalizeList(s.ExcludeDatasets)
	}
	for i := range fc.Tables {
		t := &fc.Tables[i]
		t.Dataset = strings.TrimSpace(t.Dataset)
		t.Table = strings.TrimSpace(t.Table)
		for j := range t.Checks.NullChecks {
			c := &t.Checks.NullChecks[j]
			c.Column = strings.TrimSpace(c.Column)
			c.Filter = strings.TrimSpace(c.Filter)
		}
		for j := range t.Checks.UniquenessChecks {
			c := &t.Checks.UniquenessChecks[j]
			c.Columns = trimList(c.Columns)
			c.Filter = strings.TrimSpace(c.Filter)
		}
		for j := range t.Checks.ConditionalChecks {
			c := &t.Checks.ConditionalChecks[j]
			c.Condition = strings.TrimSpace(c.Condition)
			c.Description = strings.TrimSpace(c.Description)
			c.Filter = strings.TrimSpace(c.Filter)
		}
		for j := range t.TrendAnalysis.GroupAnomalyDetection.Groups {
			g := &t.TrendAnalysis.GroupAnomalyDetection.Groups[j]
			g.Columns = trimList(g.Columns)
			g.Filter = strings.TrimSpace(g.Filter)
		}
	}
}

// Validate checks the structure of the file.
func (fc *FileConfig) Validate() error {
	if fc == nil {
		return errors.New("config is empty")
	}
	if err := fileValidator.Struct(fc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the root struct name.
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min", "gte", "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be %s %s", field, comparisonWord(fe.Tag(), fe.Kind()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func comparisonWord(tag string, kind reflect.Kind) string {
	switch {
	case tag == "gt":
		return "greater than"
	case tag == "min" && (kind == reflect.Slice || kind == reflect.String):
		return "at least of length"
	default:
		return "at least"
	}
}

// AutoLoadFile discovers and loads the first available checks file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
		LegacyConfigFile,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first checks file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", &ConfigError{Path: candidate, Err: fmt.Errorf("failed to access config file: %w", err)}
		}
		if info.IsDir() {
			return nil, "", &ConfigError{Path: candidate, Err: errors.New("config path is a directory, expected a file")}
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads and validates a checks file from a specific YAML path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, &ConfigError{Err: errors.New("config path is empty")}
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ConfigError{Path: filename, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, &ConfigError{Path: filename, Err: err}
	}
	return cfg, nil
}

// Parse decodes, normalizes and validates checks file contents.
func Parse(data []byte) (*FileConfig, error) {
	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

// trimList trims items but keeps empty ones so validation can report them.
func trimList(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.TrimSpace(value)
	}
	return out
}
