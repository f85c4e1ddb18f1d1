package decode

import "strings"

// TypeID is the normalized family of a driver type identifier.
type TypeID uint8

const (
	TypeUnknown TypeID = iota
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeMoney
	TypeText
	TypePaddedText
	TypeBool
	TypeBinary
	TypeTimestamp
	TypeDate
	TypeTime
	TypeInterval
	TypeJSON
	TypeArray
	TypeACL
)

var typeIDNames = [...]string{
	TypeUnknown:    "unknown",
	TypeInt16:      "int16",
	TypeInt32:      "int32",
	TypeInt64:      "int64",
	TypeFloat32:    "float32",
	TypeFloat64:    "float64",
	TypeMoney:      "money",
	TypeText:       "text",
	TypePaddedText: "padded_text",
	TypeBool:       "bool",
	TypeBinary:     "binary",
	TypeTimestamp:  "timestamp",
	TypeDate:       "date",
	TypeTime:       "time",
	TypeInterval:   "interval",
	TypeJSON:       "json",
	TypeArray:      "array",
	TypeACL:        "acl",
}

func (t TypeID) String() string {
	if int(t) < len(typeIDNames) {
		return typeIDNames[t]
	}
	return "unknown"
}

var typeNames = map[string]TypeID{
	"INT2":     TypeInt16,
	"SMALLINT": TypeInt16,
	"TINYINT":  TypeInt16,

	"INT4":    TypeInt32,
	"INT":     TypeInt32,
	"INTEGER": TypeInt32,

	"INT8":   TypeInt64,
	"BIGINT": TypeInt64,

	"FLOAT4": TypeFloat32,
	"REAL":   TypeFloat32,
	"FLOAT":  TypeFloat32,

	"FLOAT8":           TypeFloat64,
	"DOUBLE":           TypeFloat64,
	"DOUBLE PRECISION": TypeFloat64,

	"MONEY": TypeMoney,

	"CHAR":              TypeText,
	"VARCHAR":           TypeText,
	"TEXT":              TypeText,
	"NAME":              TypeText,
	"CHARACTER VARYING": TypeText,
	"STRING":            TypeText,

	"BPCHAR":    TypePaddedText,
	"CHARACTER": TypePaddedText,

	"BOOL":    TypeBool,
	"BOOLEAN": TypeBool,

	"BYTEA": TypeBinary,
	"BLOB":  TypeBinary,

	"TIMESTAMP":                   TypeTimestamp,
	"TIMESTAMPTZ":                 TypeTimestamp,
	"TIMESTAMP WITH TIME ZONE":    TypeTimestamp,
	"TIMESTAMP WITHOUT TIME ZONE": TypeTimestamp,
	"DATETIME":                    TypeTimestamp,

	"DATE": TypeDate,

	"TIME":                TypeTime,
	"TIMETZ":              TypeTime,
	"TIME WITH TIME ZONE": TypeTime,

	"INTERVAL": TypeInterval,

	"JSON":  TypeJSON,
	"JSONB": TypeJSON,

	"ACLITEM": TypeACL,
}

// Classify maps a driver type identifier onto its TypeID. Matching is
// case-insensitive; array types are recognized by a leading underscore or a
// trailing "[]".
func Classify(typeName string) TypeID {
	normalized := strings.ToUpper(strings.TrimSpace(typeName))
	if id, ok := typeNames[normalized]; ok {
		return id
	}
	if strings.HasPrefix(normalized, "_") || strings.HasSuffix(normalized, "[]") {
		return TypeArray
	}
	return TypeUnknown
}
