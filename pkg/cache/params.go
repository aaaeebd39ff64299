package cache

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FloatPrecision is the number of decimal places floating-point parameters
// are rounded to before key derivation. Without a fixed precision, values
// that differ only in representation noise (0.1+0.2 vs 0.3) would fragment
// into distinct cache keys.
const FloatPrecision = 6

// Params is the parameter set a cache key is derived from. Values must be
// primitives (string, integer, float, bool) or flat slices of primitives;
// nested or opaque values are rejected with ErrInvalidParameterKind.
type Params map[string]any

// canonicalValue serializes a single parameter value into its canonical
// textual form. Equal logical values always produce equal output. Strings are
// percent-escaped so the serialization delimiters (=, ;, [, ], ,) inside a
// value can never forge a segment boundary and collide two distinct parameter
// sets.
func canonicalValue(name string, v any) (string, error) {
	switch val := v.(type) {
	case string:
		return url.QueryEscape(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return canonicalFloat(float64(val)), nil
	case float64:
		return canonicalFloat(val), nil
	case []string:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = url.QueryEscape(e)
		}
		return joinList(parts), nil
	case []int:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = strconv.FormatInt(int64(e), 10)
		}
		return joinList(parts), nil
	case []int64:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = strconv.FormatInt(e, 10)
		}
		return joinList(parts), nil
	case []float64:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = canonicalFloat(e)
		}
		return joinList(parts), nil
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			s, err := canonicalElement(name, e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return joinList(parts), nil
	default:
		return "", fmt.Errorf("%w: parameter %q has unsupported type %T",
			ErrInvalidParameterKind, name, v)
	}
}

// canonicalElement serializes a slice element. Slices may only contain
// primitives, so nested slices are rejected here.
func canonicalElement(name string, v any) (string, error) {
	switch v.(type) {
	case []string, []int, []int64, []float64, []any:
		return "", fmt.Errorf("%w: parameter %q contains a nested list",
			ErrInvalidParameterKind, name)
	}
	return canonicalValue(name, v)
}

// canonicalFloat renders a float rounded to FloatPrecision decimal places.
// decimal avoids the binary-representation artifacts of strconv.FormatFloat.
func canonicalFloat(f float64) string {
	return decimal.NewFromFloat(f).Round(FloatPrecision).String()
}

func joinList(parts []string) string {
	return "[" + strings.Join(parts, ",") + "]"
}
