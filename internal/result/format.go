package result

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders v like Python 3's repr: shortest round-trip digits,
// integral values keep a ".0", and exponents are used only below 1e-4 or
// from 1e16 up ("5.0", "0.25", "1e-05", "1e+16"). Python 2's str, which
// rounds to 12 significant digits, is not reproduced.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if v == 0 {
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}
	abs := math.Abs(v)
	if abs < 1e-4 || abs >= 1e16 {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
