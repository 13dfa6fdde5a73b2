// Package checks turns check definitions into warehouse queries and
// classifies threshold metrics.
package checks

import (
	"fmt"
	"strings"

	"github.com/ppiankov/tablespectre/internal/models"
)

// Defaults applied to group anomaly definitions that do not set their own
// window sizes.
const (
	DefaultHistoricalDataPoints = 7
	DefaultMinimumDataPoints    = 5
)

// Target identifies the table a check runs against.
type Target struct {
	Dataset string
	Table   string
	// Filter is a raw SQL predicate from trusted configuration. It is
	// interpolated verbatim.
	Filter string
}

// FullName returns "dataset.table"
func (t Target) FullName() string {
	return t.Dataset + "." + t.Table
}

// Definition is one of NullCheck, UniquenessCheck, ConditionalCheck or
// GroupAnomalyCheck. The set is closed: only this package can add variants.
type Definition interface {
	Kind() models.CheckKind
	Target() Target
	Name() string
	isDefinition()
}

// NullCheck counts rows where Column is NULL.
type NullCheck struct {
	On        Target
	Column    string
	Threshold float64
}

// UniquenessCheck counts rows whose combined Columns value repeats.
type UniquenessCheck struct {
	On        Target
	Columns   []string
	Threshold float64
}

// ConditionalCheck counts rows where Condition is false.
type ConditionalCheck struct {
	On          Target
	Condition   string
	Description string
	Threshold   float64
}

// GroupAnomalyCheck compares per-group row counts against recent history.
type GroupAnomalyCheck struct {
	On                   Target
	GroupBy              []string
	AnomalyThreshold     float64
	HistoricalDataPoints int
	MinimumDataPoints    int
}

func (NullCheck) Kind() models.CheckKind         { return models.KindNull }
func (UniquenessCheck) Kind() models.CheckKind   { return models.KindUniqueness }
func (ConditionalCheck) Kind() models.CheckKind  { return models.KindConditional }
func (GroupAnomalyCheck) Kind() models.CheckKind { return models.KindAnomaly }

func (c NullCheck) Target() Target         { return c.On }
func (c UniquenessCheck) Target() Target   { return c.On }
func (c ConditionalCheck) Target() Target  { return c.On }
func (c GroupAnomalyCheck) Target() Target { return c.On }

func (NullCheck) isDefinition()         {}
func (UniquenessCheck) isDefinition()   {}
func (ConditionalCheck) isDefinition()  {}
func (GroupAnomalyCheck) isDefinition() {}

func (c NullCheck) Name() string {
	return "Null check on " + c.Column
}

func (c UniquenessCheck) Name() string {
	return "Uniqueness check on " + strings.Join(c.Columns, ", ")
}

func (c ConditionalCheck) Name() string {
	if c.Description != "" {
		return c.Description
	}
	return "Conditional check: " + c.Condition
}

func (c GroupAnomalyCheck) Name() string {
	return "Anomaly detection on " + strings.Join(c.GroupBy, ", ")
}

// Threshold returns the pass/fail threshold of a definition. For group
// anomaly checks it is the relative deviation threshold.
func Threshold(def Definition) float64 {
	switch d := def.(type) {
	case NullCheck:
		return d.Threshold
	case UniquenessCheck:
		return d.Threshold
	case ConditionalCheck:
		return d.Threshold
	case GroupAnomalyCheck:
		return d.AnomalyThreshold
	default:
		panic(fmt.Sprintf("checks: unhandled definition %T", def))
	}
}
