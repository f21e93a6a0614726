package jsonpath

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags the dynamic type held by a Scalar.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Scalar is a JSON leaf value extracted by a path query.
type Scalar struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
}

func Bool(v bool) Scalar     { return Scalar{kind: KindBool, b: v} }
func Int(v int64) Scalar     { return Scalar{kind: KindInt, i: v} }
func Uint(v uint64) Scalar   { return Scalar{kind: KindUint, u: v} }
func Float(v float64) Scalar { return Scalar{kind: KindFloat, f: v} }
func String(v string) Scalar { return Scalar{kind: KindString, s: v} }
func (s Scalar) Kind() Kind  { return s.kind }

// Interface returns the value as bool, int, float64 or string. Integers past
// the int64 range are bound as float64.
func (s Scalar) Interface() any {
	switch s.kind {
	case KindBool:
		return s.b
	case KindInt:
		return int(s.i)
	case KindUint:
		return float64(s.u)
	case KindFloat:
		return s.f
	case KindString:
		return s.s
	default:
		return nil
	}
}

// String renders the canonical form used for literal comparison. Integral
// floats keep a ".0" suffix so 1.0 and 1 stay distinguishable, and very large
// or small magnitudes switch to exponent form (1e21, 1e-7).
func (s Scalar) String() string {
	switch s.kind {
	case KindBool:
		return strconv.FormatBool(s.b)
	case KindInt:
		return strconv.FormatInt(s.i, 10)
	case KindUint:
		return strconv.FormatUint(s.u, 10)
	case KindFloat:
		return formatFloat(s.f)
	case KindString:
		return s.s
	default:
		return ""
	}
}

func numberScalar(raw string, num float64) Scalar {
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Int(i)
		}
		if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return Uint(u)
		}
	}
	return Float(num)
}

// formatFloat prints the shortest round-trip digits of f. Decimal notation is
// used while the decimal point falls within 16 digits to the left or 5 to the
// right of the first digit.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	sign := ""
	if sci[0] == '-' {
		sign, sci = "-", sci[1:]
	}
	mantissa, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mantissa, ".", "", 1)

	// the point sits after `point` digits
	point := exp + 1
	n := len(digits)
	var out string
	switch {
	case point >= n && point <= 16:
		out = digits + strings.Repeat("0", point-n) + ".0"
	case point > 0 && point <= 16:
		out = digits[:point] + "." + digits[point:]
	case point > -5 && point <= 0:
		out = "0." + strings.Repeat("0", -point) + digits
	case n == 1:
		out = digits + "e" + strconv.Itoa(exp)
	default:
		out = digits[:1] + "." + digits[1:] + "e" + strconv.Itoa(exp)
	}
	return sign + out
}
