package itfile

import (
	"bytes"
	"strings"
)

func convertCstring(data []byte) string {
	i := bytes.IndexByte(data, 0)
	if i != -1 {
		data = data[:i]
	}
	return strings.TrimRight(string(data), " ")
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
