package commands

import "strconv"

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 0, 64)
}
