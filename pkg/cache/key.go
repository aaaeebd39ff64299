package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key is a derived cache key. The operation prefix stays readable for
// debugging and metrics; the parameter set is collapsed into a digest so
// permutations of the same logical parameters produce the same key.
//
// Example: stock_data:9cb1a3f07d2e6b44
type Key string

// String returns the key as a plain string.
func (k Key) String() string {
	return string(k)
}

// BuildKey derives a deterministic cache key from an operation prefix and a
// parameter set. Parameter names are sorted before serialization, so insertion
// order never affects the result. Floats are rounded to FloatPrecision first.
//
// Returns an error wrapping ErrInvalidParameterKind if any parameter value is
// not a supported primitive (or flat slice of primitives).
func BuildKey(prefix string, params Params) (Key, error) {
	if len(params) == 0 {
		return Key(fmt.Sprintf("%s:%016x", prefix, xxhash.Sum64String(""))), nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	// Names and string values are percent-escaped before joining, so a
	// delimiter inside a value cannot masquerade as a segment boundary.
	var b strings.Builder
	for _, name := range names {
		value, err := canonicalValue(name, params[name])
		if err != nil {
			return "", err
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte(';')
	}

	return Key(fmt.Sprintf("%s:%016x", prefix, xxhash.Sum64String(b.String()))), nil
}
