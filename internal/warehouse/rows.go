package warehouse

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Row is one result row with its column names in select order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of column name.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Int64 returns column name as an int64. valid is false when the column is
// NULL; a missing column is an error.
func (r Row) Int64(name string) (n int64, valid bool, err error) {
	f, valid, err := r.Float64(name)
	if err != nil || !valid {
		return 0, valid, err
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false, fmt.Errorf("column %q value %v overflows int64", name, f)
	}
	return int64(f), true, nil
}

// Float64 returns column name as a float64. valid is false when the column
// is NULL; a missing column is an error.
func (r Row) Float64(name string) (f float64, valid bool, err error) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false, fmt.Errorf("column %q missing from result (have %s)", name, strings.Join(r.Columns, ", "))
	}
	if v == nil {
		return 0, false, nil
	}
	f, err = toFloat64(v)
	if err != nil {
		return 0, false, fmt.Errorf("column %q: %w", name, err)
	}
	return f, true, nil
}

type floatConverter interface {
	Float64() (float64, bool)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case floatConverter:
		f, _ := n.Float64()
		return f, nil
	case fmt.Stringer:
		return strconv.ParseFloat(strings.TrimSpace(n.String()), 64)
	}
	return 0, fmt.Errorf("unsupported numeric type %T", v)
}

// normalizeValue turns driver-specific scan results into plain Go values
// so group values serialize the same way regardless of backend.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	case *string:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}
