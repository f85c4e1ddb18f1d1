// Package decode turns one driver cell into a value.Value. A cell that cannot
// be read as its column's family decodes to Null; decoding never fails.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"github.com/sqlpane/sqlpane/internal/conn"
	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/value"
)

const (
	IntervalPlaceholder = "interval"
	ACLPlaceholder      = "[ACL permissions]"

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05.999999999"
)

// Decode reads cell according to the family of typeName.
// An empty typeName means the driver could not type the column; the cell
// then names its own value when it implements conn.TypeNamer.
func Decode(typeName string, cell conn.Cell) (v value.Value) {
	if strings.TrimSpace(typeName) == "" {
		if cell.IsNull() {
			return value.Null()
		}
		if namer, ok := cell.(conn.TypeNamer); ok {
			typeName = namer.TypeName()
		}
	}
	id := Classify(typeName)
	defer func() {
		if r := recover(); r != nil {
			observability.IncrementDecodeFallback(id.String())
			v = value.Null()
		}
	}()

	decoded, err := decode(id, typeName, cell)
	if err != nil {
		if !errors.Is(err, conn.ErrNull) {
			observability.IncrementDecodeFallback(id.String())
		}
		return value.Null()
	}
	return decoded
}

func decode(id TypeID, typeName string, cell conn.Cell) (value.Value, error) {
	switch id {
	case TypeInt16:
		v, err := cell.Int16()
		return value.Int(int32(v)), err
	case TypeInt32:
		v, err := cell.Int32()
		return value.Int(v), err
	case TypeInt64:
		v, err := cell.Int64()
		return value.BigInt(v), err
	case TypeFloat32:
		v, err := cell.Float32()
		return value.Float(float64(v)), err
	case TypeFloat64:
		v, err := cell.Float64()
		return value.Float(v), err
	case TypeMoney:
		v, err := cell.Money()
		return value.Float(v), err
	case TypeText:
		v, err := cell.String()
		return value.Text(v), err
	case TypePaddedText:
		v, err := cell.String()
		return value.Text(strings.TrimRight(v, " ")), err
	case TypeBool:
		v, err := cell.Bool()
		return value.Bool(v), err
	case TypeBinary:
		v, err := cell.Bytes()
		if err != nil {
			return value.Null(), err
		}
		if utf8.Valid(v) {
			return value.Text(string(v)), nil
		}
		return value.Bytea(v), nil
	case TypeTimestamp:
		v, err := cell.Time()
		return value.Text(v.UTC().Format(time.RFC3339Nano)), err
	case TypeDate:
		v, err := cell.Time()
		return value.Text(v.Format(dateLayout)), err
	case TypeTime:
		v, err := cell.Time()
		return value.Text(v.Format(timeLayout)), err
	case TypeInterval:
		if _, err := cell.Interval(); err != nil {
			return value.Null(), err
		}
		return value.Text(IntervalPlaceholder), nil
	case TypeJSON:
		raw, err := cell.JSON()
		if err != nil {
			return value.Null(), err
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return value.Null(), fmt.Errorf("compact json: %w", err)
		}
		return value.Text(compact.String()), nil
	case TypeArray:
		elems, err := cell.StringArray()
		if err != nil {
			return value.Null(), err
		}
		values := make([]value.Value, len(elems))
		for i, elem := range elems {
			values[i] = value.Text(elem)
		}
		return value.Array(values...), nil
	case TypeACL:
		return value.Text(ACLPlaceholder), nil
	case TypeUnknown:
		return value.Unknown(typeName), nil
	default:
		return value.Unknown(typeName), nil
	}
}
