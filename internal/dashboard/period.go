package dashboard

import (
	"fmt"
	"strconv"
	"time"
)

// ParsePeriod converts a unit-suffixed display period like "5m", "1h",
// "1d" or "1w" into a duration. The poll interval is derived from it.
func ParsePeriod(period string) (time.Duration, error) {
	if len(period) < 2 {
		return 0, fmt.Errorf("invalid period %q", period)
	}

	value, err := strconv.Atoi(period[:len(period)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid period %q", period)
	}

	var unit time.Duration
	switch period[len(period)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown period unit in %q", period)
	}

	return time.Duration(value) * unit, nil
}
