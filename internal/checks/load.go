package checks

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/tablespectre/pkg/config"
)

// Set holds parsed definitions grouped by category, in file order.
type Set struct {
	Null        []NullCheck
	Uniqueness  []UniquenessCheck
	Conditional []ConditionalCheck
	Groups      []GroupAnomalyCheck
}

// Len returns the number of definitions in the set.
func (s Set) Len() int {
	return len(s.Null) + len(s.Uniqueness) + len(s.Conditional) + len(s.Groups)
}

// All returns every definition in phase order.
func (s Set) All() []Definition {
	defs := make([]Definition, 0, s.Len())
	for _, d := range s.Null {
		defs = append(defs, d)
	}
	for _, d := range s.Uniqueness {
		defs = append(defs, d)
	}
	for _, d := range s.Conditional {
		defs = append(defs, d)
	}
	for _, d := range s.Groups {
		defs = append(defs, d)
	}
	return defs
}

// FromFile builds definitions from a validated checks file, applying window
// defaults at parse time.
func FromFile(fc *config.FileConfig) (Set, error) {
	var set Set
	if fc == nil {
		return set, &config.ConfigError{Err: fmt.Errorf("config is empty")}
	}

	for ti, tc := range fc.Tables {
		for _, nc := range tc.Checks.NullChecks {
			set.Null = append(set.Null, NullCheck{
				On:        Target{Dataset: tc.Dataset, Table: tc.Table, Filter: nc.Filter},
				Column:    nc.Column,
				Threshold: deref(nc.Threshold, 0),
			})
		}
		for _, uc := range tc.Checks.UniquenessChecks {
			set.Uniqueness = append(set.Uniqueness, UniquenessCheck{
				On:        Target{Dataset: tc.Dataset, Table: tc.Table, Filter: uc.Filter},
				Columns:   append([]string(nil), uc.Columns...),
				Threshold: deref(uc.Threshold, 0),
			})
		}
		for _, cc := range tc.Checks.ConditionalChecks {
			set.Conditional = append(set.Conditional, ConditionalCheck{
				On:          Target{Dataset: tc.Dataset, Table: tc.Table, Filter: cc.Filter},
				Condition:   cc.Condition,
				Description: cc.Description,
				Threshold:   deref(cc.Threshold, 0),
			})
		}

		gad := tc.TrendAnalysis.GroupAnomalyDetection
		tableWindow := deref(gad.HistoricalDataPoints, DefaultHistoricalDataPoints)
		tableMinimum := deref(gad.MinimumDataPoints, DefaultMinimumDataPoints)
		for gi, gc := range gad.Groups {
			def := GroupAnomalyCheck{
				On:                   Target{Dataset: tc.Dataset, Table: tc.Table, Filter: gc.Filter},
				GroupBy:              append([]string(nil), gc.Columns...),
				AnomalyThreshold:     deref(gc.AnomalyThreshold, 0),
				HistoricalDataPoints: deref(gc.HistoricalDataPoints, tableWindow),
				MinimumDataPoints:    deref(gc.MinimumDataPoints, tableMinimum),
			}
			if def.MinimumDataPoints > def.HistoricalDataPoints {
				// Such a group can never collect enough history and is always
				// reported as insufficient_data.
				slog.Warn("minimum_data_points exceeds historical_data_points",
					slog.String("table", def.On.FullName()),
					slog.String("path", fmt.Sprintf("tables[%d].trend_analysis.group_anomaly_detection.groups[%d]", ti, gi)),
					slog.Int("minimum_data_points", def.MinimumDataPoints),
					slog.Int("historical_data_points", def.HistoricalDataPoints),
				)
			}
			set.Groups = append(set.Groups, def)
		}
	}

	return set, nil
}

// Select keeps the categories chosen by cfg and drops excluded tables.
func (s Set) Select(cfg *config.Config) Set {
	var out Set
	keep := func(t Target) bool {
		return !cfg.IsTableExcluded(t.Dataset, t.Table)
	}
	if cfg.IncludesCategory(config.CategoryNull) {
		out.Null = filter(s.Null, keep)
	}
	if cfg.IncludesCategory(config.CategoryUniqueness) {
		out.Uniqueness = filter(s.Uniqueness, keep)
	}
	if cfg.IncludesCategory(config.CategoryConditional) {
		out.Conditional = filter(s.Conditional, keep)
	}
	if cfg.IncludesCategory(config.CategoryAnomaly) {
		out.Groups = filter(s.Groups, keep)
	}
	return out
}

func filter[T Definition](defs []T, keep func(Target) bool) []T {
	var out []T
	for _, d := range defs {
		if keep(d.Target()) {
			out = append(out, d)
		}
	}
	return out
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
