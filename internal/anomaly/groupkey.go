package anomaly

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// nullToken stands for a NULL group value. It cannot collide with a real
// value because real values are always written as "<length>:<value>".
const nullToken = "N"

// GroupKey identifies one distinct combination of group-by values.
type GroupKey struct {
	// Columns and Values are aligned; Values holds canonical strings with
	// nil for NULL.
	Columns []string
	Values  []*string
}

// NewGroupKey builds a key from the raw values returned by the warehouse.
func NewGroupKey(columns []string, values []any) (GroupKey, error) {
	if len(columns) != len(values) {
		return GroupKey{}, fmt.Errorf("group key has %d columns but %d values", len(columns), len(values))
	}
	key := GroupKey{
		Columns: append([]string(nil), columns...),
		Values:  make([]*string, len(values)),
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		s := canonicalValue(v)
		key.Values[i] = &s
	}
	return key, nil
}

// Canonical returns the self-delimiting serialization of the key: every
// column name and value is written as "<rune count>:<text>", NULL as "N".
func (k GroupKey) Canonical() string {
	var b strings.Builder
	for i, col := range k.Columns {
		writeField(&b, &col)
		writeField(&b, k.Values[i])
	}
	return b.String()
}

// Hash is the hex SHA-256 of Canonical and is what history is keyed on.
func (k GroupKey) Hash() string {
	sum := sha256.Sum256([]byte(k.Canonical()))
	return hex.EncodeToString(sum[:])
}

// Readable renders the key as a JSON object in column order.
func (k GroupKey) Readable() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, col := range k.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(col)
		b.Write(name)
		b.WriteByte(':')
		if k.Values[i] == nil {
			b.WriteString("null")
			continue
		}
		value, _ := json.Marshal(*k.Values[i])
		b.Write(value)
	}
	b.WriteByte('}')
	return b.String()
}

func writeField(b *strings.Builder, s *string) {
	if s == nil {
		b.WriteString(nullToken)
		return
	}
	b.WriteString(strconv.Itoa(utf8.RuneCountInString(*s)))
	b.WriteByte(':')
	b.WriteString(*s)
}

// canonicalValue formats v so that the same logical value read through
// different drivers yields the same text.
func canonicalValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
