package format

import (
	"fmt"
	"strconv"
)

var (
	byteUnits = []string{"B/s", "KB/s", "MB/s", "GB/s"}
	bitUnits  = []string{"b/s", "Kb/s", "Mb/s", "Gb/s"}
)

// Rate converts a bytes-per-second value into a display magnitude and unit.
// The bits axis multiplies by 8 before scaling. Fixed mode keeps the base
// unit and renders with zero decimals. Auto mode scales bytes by 1024 and
// bits by 1000; a scaled value below 10 keeps one decimal of precision.
func Rate(bytesPerSecond float64, useBits, autoScale bool) (string, string) {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}

	value := bytesPerSecond
	units := byteUnits
	base := 1024.0
	if useBits {
		value *= 8
		units = bitUnits
		base = 1000.0
	}

	if !autoScale {
		return strconv.FormatFloat(value, 'f', 0, 64), units[0]
	}

	idx := 0
	for value >= base && idx < len(units)-1 {
		value /= base
		idx++
	}

	decimals := 0
	if value < 10 {
		decimals = 1
	}

	return strconv.FormatFloat(value, 'f', decimals, 64), units[idx]
}

// TimeRemaining renders an estimated minutes-remaining value. Negative
// minutes mean the estimate has not settled yet.
func TimeRemaining(minutes int) string {
	if minutes < 0 {
		return "Calculating…"
	}

	if minutes >= 60 {
		return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
	}

	return fmt.Sprintf("%d min", minutes)
}
