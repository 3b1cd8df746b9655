package exceptions

import (
	"math"
	"strconv"

	"exboard/internal/constants"
)

// FormatDuration renders 100ns ticks as HH:MM:SS. Hours are not bounded and
// fractional seconds are dropped. Zero renders as N/A.
func FormatDuration(ticks int64) string {
	if ticks == 0 {
		return constants.NotAvailable
	}

	seconds := float64(ticks) / constants.TicksPerSecond
	h := math.Floor(seconds / 3600)
	m := math.Floor(math.Mod(seconds, 3600) / 60)
	s := math.Floor(math.Mod(seconds, 60))

	return pad(h) + ":" + pad(m) + ":" + pad(s)
}

// pad prefixes a literal "0" to anything below ten, negatives included.
func pad(v float64) string {
	str := strconv.FormatFloat(v, 'f', -1, 64)
	if v < 10 {
		return "0" + str
	}
	return str
}
