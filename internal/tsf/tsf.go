// Package tsf implements the positional "%v" formatting used by the
// public Info/Warn/Error/Fatal helpers, grounded on the tsf_buf/fmt_buf
// machinery in original_source/tsf.cpp and tsf.h (the name is kept as a
// nod to that origin: "type-safe format").
//
// Arguments are classified once into a small tagged-variant set — rather
// than being type-switched over repeatedly inline — matching the
// "tagged-variant argument list, not dynamic dispatch over deep
// hierarchies" guidance for extensible %v formatting.
package tsf

import (
	"fmt"
	"strconv"
)

// AppendFormat scans format for occurrences of "%v" and "%%", appending
// the formatted result to dst. "%v" consumes the next value from args in
// order; a "%v" left over once args are used up is copied through as
// "%v". "%%" emits a literal percent sign. Any other byte, including a
// stray '%' not followed by 'v' or '%', is copied through unchanged —
// %v is the only placeholder this package understands.
func AppendFormat(dst []byte, format string, args ...any) []byte {
	argi := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '%' && i+1 < len(format) {
			switch format[i+1] {
			case 'v':
				if argi < len(args) {
					dst = appendValue(dst, args[argi])
					argi++
				} else {
					dst = append(dst, '%', 'v')
				}
				i++
				continue
			case '%':
				dst = append(dst, '%')
				i++
				continue
			}
		}
		dst = append(dst, c)
	}
	return dst
}

// appendValue dispatches v into dst via the closed set of conversions
// spec.md calls out: integers, unsigned integers, floats, strings and
// booleans, plus the two standard extensibility hooks (error, and
// fmt.Stringer) a Go caller would expect. Anything outside that set falls
// back to fmt.Sprint, which is the user-provided stringification hook
// spec.md's "extensibility is via user-provided stringification hooks"
// describes.
func appendValue(dst []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return append(dst, x...)
	case []byte:
		return append(dst, x...)
	case bool:
		if x {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case int:
		return strconv.AppendInt(dst, int64(x), 10)
	case int8:
		return strconv.AppendInt(dst, int64(x), 10)
	case int16:
		return strconv.AppendInt(dst, int64(x), 10)
	case int32:
		return strconv.AppendInt(dst, int64(x), 10)
	case int64:
		return strconv.AppendInt(dst, x, 10)
	case uint:
		return strconv.AppendUint(dst, uint64(x), 10)
	case uint8:
		return strconv.AppendUint(dst, uint64(x), 10)
	case uint16:
		return strconv.AppendUint(dst, uint64(x), 10)
	case uint32:
		return strconv.AppendUint(dst, uint64(x), 10)
	case uint64:
		return strconv.AppendUint(dst, x, 10)
	case float32:
		return strconv.AppendFloat(dst, float64(x), 'g', -1, 32)
	case float64:
		return strconv.AppendFloat(dst, x, 'g', -1, 64)
	case error:
		return append(dst, x.Error()...)
	case fmt.Stringer:
		return append(dst, x.String()...)
	default:
		return append(dst, fmt.Sprint(x)...)
	}
}
