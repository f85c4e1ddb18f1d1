package sqldb

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/marcboeker/go-duckdb/v2"

	"github.com/sqlpane/sqlpane/internal/conn"
)

// rawCell keeps the driver value of one column exactly as the driver
// produced it.
type rawCell struct {
	v any
}

func (c *rawCell) Scan(src any) error {
	if b, ok := src.([]byte); ok {
		c.v = append([]byte(nil), b...)
		return nil
	}
	c.v = src
	return nil
}

func (c rawCell) IsNull() bool {
	return c.v == nil
}

// TypeName names the held value in the vocabulary the decoder classifies.
func (c rawCell) TypeName() string {
	switch c.v.(type) {
	case int64, int32, int16, int8, int, uint8, uint16, uint32:
		return "INT8"
	case float64, float32:
		return "FLOAT8"
	case string:
		return "TEXT"
	case []byte:
		return "BLOB"
	case bool:
		return "BOOL"
	case time.Time:
		return "TIMESTAMP"
	default:
		return ""
	}
}

func (c rawCell) Int16() (int16, error) {
	v, err := c.Int64()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, fmt.Errorf("value %d overflows int16", v)
	}
	return int16(v), nil
}

func (c rawCell) Int32() (int32, error) {
	v, err := c.Int64()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("value %d overflows int32", v)
	}
	return int32(v), nil
}

func (c rawCell) Int64() (int64, error) {
	switch v := c.v.(type) {
	case nil:
		return 0, conn.ErrNull
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case *big.Int:
		if !v.IsInt64() {
			return 0, fmt.Errorf("value %s overflows int64", v)
		}
		return v.Int64(), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	default:
		return 0, unsupported(c.v, "int64")
	}
}

func (c rawCell) Float32() (float32, error) {
	v, err := c.Float64()
	if err != nil {
		return 0, err
	}
	if !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > math.MaxFloat32 {
		return 0, fmt.Errorf("value %g overflows float32", v)
	}
	return float32(v), nil
}

func (c rawCell) Float64() (float64, error) {
	switch v := c.v.(type) {
	case nil:
		return 0, conn.ErrNull
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	default:
		return 0, unsupported(c.v, "float64")
	}
}

// Money accepts numeric driver values and Postgres money text such as
// "$1,234.56" or "-$3.00".
func (c rawCell) Money() (float64, error) {
	switch v := c.v.(type) {
	case string:
		return parseMoney(v)
	case []byte:
		return parseMoney(string(v))
	default:
		return c.Float64()
	}
}

func (c rawCell) String() (string, error) {
	switch v := c.v.(type) {
	case nil:
		return "", conn.ErrNull
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", unsupported(c.v, "string")
	}
}

func (c rawCell) Bool() (bool, error) {
	switch v := c.v.(type) {
	case nil:
		return false, conn.ErrNull
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(v)))
	default:
		return false, unsupported(c.v, "bool")
	}
}

func (c rawCell) Bytes() ([]byte, error) {
	switch v := c.v.(type) {
	case nil:
		return nil, conn.ErrNull
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	default:
		return nil, unsupported(c.v, "[]byte")
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
	"15:04:05.999999999Z07:00",
	"15:04:05.999999999-07",
	"15:04:05.999999999",
}

func (c rawCell) Time() (time.Time, error) {
	var raw string
	switch v := c.v.(type) {
	case nil:
		return time.Time{}, conn.ErrNull
	case time.Time:
		return v, nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return time.Time{}, unsupported(c.v, "time.Time")
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", raw)
}

func (c rawCell) Interval() (any, error) {
	switch v := c.v.(type) {
	case nil:
		return nil, conn.ErrNull
	case duckdb.Interval, time.Duration, string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return nil, unsupported(c.v, "interval")
	}
}

func (c rawCell) JSON() ([]byte, error) {
	switch v := c.v.(type) {
	case nil:
		return nil, conn.ErrNull
	case []byte:
		return validJSON(v)
	case string:
		return validJSON([]byte(v))
	default:
		return json.Marshal(v)
	}
}

// StringArray reads Postgres array literals ("{a,b}") through pgtype and
// DuckDB lists element by element. NULL elements are rejected.
func (c rawCell) StringArray() ([]string, error) {
	switch v := c.v.(type) {
	case nil:
		return nil, conn.ErrNull
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, len(v))
		for i, elem := range v {
			text, err := elementText(elem)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			out[i] = text
		}
		return out, nil
	case string, []byte:
		var out []string
		if err := pgtype.NewMap().SQLScanner(&out).Scan(v); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, unsupported(c.v, "[]string")
	}
}

func elementText(elem any) (string, error) {
	switch v := elem.(type) {
	case nil:
		return "", conn.ErrNull
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), nil
	default:
		return "", unsupported(elem, "string")
	}
}

func validJSON(raw []byte) ([]byte, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid json document")
	}
	return append([]byte(nil), raw...), nil
}

func parseMoney(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	negative := strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")")
	digits := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, trimmed)
	if digits == "" {
		return 0, fmt.Errorf("cannot parse %q as money", raw)
	}
	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as money: %w", raw, err)
	}
	if negative {
		value = -value
	}
	return value, nil
}

func unsupported(v any, target string) error {
	return fmt.Errorf("cannot read %T as %s", v, target)
}
