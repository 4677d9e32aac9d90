package dataProcess

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFinite is returned for NaN and infinite values.
var ErrNotFinite = errors.New("value is not a finite number")

// parseFinite parses a float64 and rejects NaN and ±Inf.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", s, ErrNotFinite)
	}
	return v, nil
}

// ParseTopology parses layer sizes written as "2-3-1", "2,3,1" or "2;3;1".
func ParseTopology(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("topology %q: no layers", s)
	}
	topology := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("topology %q: layer %d: %w", s, i, err)
		}
		topology[i] = n
	}
	return topology, nil
}

// ParseVector parses numbers separated by ',', ';', whitespace or '-'.
// A '-' that follows a digit or '.' separates two numbers; anywhere else
// it is a sign, so "0.5--1" is [0.5, -1] and "1e-3" is a single number.
func ParseVector(s string) (*mat.VecDense, error) {
	fields := splitVector(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("vector %q: no values", s)
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFinite(f)
		if err != nil {
			return nil, fmt.Errorf("vector %q: value %d: %w", s, i+1, err)
		}
		values[i] = v
	}
	return mat.NewVecDense(len(values), values), nil
}

func splitVector(s string) []string {
	var fields []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case r == ',' || r == ';' || unicode.IsSpace(r):
			flush()
		case r == '-' && (unicode.IsDigit(prev) || prev == '.'):
			flush()
			// the '-' only separates, the next one may be a sign
			r = 0
		default:
			cur.WriteRune(r)
		}
		prev = r
	}
	flush()
	return fields
}

// FormatVector joins the values of v with sep.
func FormatVector(v mat.Vector, sep string) string {
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = strconv.FormatFloat(v.AtVec(i), 'g', -1, 64)
	}
	return strings.Join(parts, sep)
}
