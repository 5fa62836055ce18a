package reconcile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CoerceValue converts a trait value into a representation the Contact
// Store accepts for custom fields, which are untyped text/number/date
// scalars with no native boolean or array type:
//
//   - booleans become the literals "true" / "false"
//   - strings pass through unchanged
//   - numbers pass through as numeric literals
//   - null / absent values become the empty string
//   - arrays of scalars are joined with a comma separator
//
// Array elements containing the comma separator are not escaped; the
// destination stores the joined text as-is.
func CoerceValue(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v
	case json.Number:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = scalarString(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	default:
		return fmt.Sprint(v)
	}
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
