package vtp

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

const indent = "          "

// formatFloat renders v the way Python's repr does for a float: the shortest
// round-tripping digits, fixed notation with a trailing ".0" for integral
// values when the decimal exponent is in [-4, 16), and exponent notation
// otherwise.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// writeWrapped emits n items, perLine to a line. Every line starts with the
// indent and every item is followed by a separator: a newline after the last
// item of a full line, a space otherwise. A trailing partial line is closed
// with a newline.
func writeWrapped(b *bytes.Buffer, n, perLine int, item func(b *bytes.Buffer, i int)) {
	for i := 0; i < n; i++ {
		if i%perLine == 0 {
			b.WriteString(indent)
		}
		item(b, i)
		if i%perLine == perLine-1 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	if n%perLine != 0 {
		b.WriteByte('\n')
	}
}

// minOf and maxOf scan left to right keeping the first extreme seen. A NaN
// in the first position is therefore sticky, and NaNs elsewhere are skipped.
func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
