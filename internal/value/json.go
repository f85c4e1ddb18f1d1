package value

import (
	"math"

	json "github.com/goccy/go-json"
)

// MarshalJSON encodes numbers and booleans natively and everything else
// through its canonical string form. Null becomes JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt, KindBigInt:
		return json.Marshal(v.num)
	case KindFloat:
		if math.IsNaN(v.float) || math.IsInf(v.float, 0) {
			return json.Marshal(formatFloat(v.float))
		}
		return json.Marshal(v.float)
	case KindBool:
		return json.Marshal(v.flag)
	case KindArray:
		return json.Marshal(v.elems)
	default:
		return json.Marshal(v.String())
	}
}
