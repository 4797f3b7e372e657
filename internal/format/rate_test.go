package format_test

import (
	"testing"

	"codeberg.org/mutker/macstatd/internal/format"
	"github.com/stretchr/testify/assert"
)

func TestRateFixedUnits(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		useBits bool
		value   string
		unit    string
	}{
		{"bytes keep base unit", 1536, false, "1536", "B/s"},
		{"bytes round to whole", 1536.7, false, "1537", "B/s"},
		{"bits multiply by eight", 1500, true, "12000", "b/s"},
		{"zero", 0, false, "0", "B/s"},
		{"negative clamps to zero", -42, false, "0", "B/s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, unit := format.Rate(tt.input, tt.useBits, false)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func TestRateAutoScale(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		useBits bool
		value   string
		unit    string
	}{
		{"bytes scale by 1024", 1536, false, "1.5", "KB/s"},
		{"bits scale by 1000", 1500, true, "12", "Kb/s"},
		{"small value keeps one decimal", 5, false, "5.0", "B/s"},
		{"large value drops decimals", 500, false, "500", "B/s"},
		{"megabytes", 5 * 1024 * 1024, false, "5.0", "MB/s"},
		{"gigabytes cap the scale", 3 * 1024 * 1024 * 1024 * 1024, false, "3072", "GB/s"},
		{"gigabits", 2.5e9 / 8, true, "2.5", "Gb/s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, unit := format.Rate(tt.input, tt.useBits, true)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

func TestTimeRemaining(t *testing.T) {
	assert.Equal(t, "Calculating…", format.TimeRemaining(-1))
	assert.Equal(t, "0 min", format.TimeRemaining(0))
	assert.Equal(t, "32 min", format.TimeRemaining(32))
	assert.Equal(t, "1:05", format.TimeRemaining(65))
	assert.Equal(t, "2:00", format.TimeRemaining(120))
}
