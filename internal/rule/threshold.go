package rule

import (
	"strconv"
	"strings"
	"time"
)

// DefaultThreshold applies when a threshold has no recognised suffix.
const DefaultThreshold = 300 * time.Second

var thresholdUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// ParseThreshold converts values such as "300s", "5m", "2h" or "1d" into a
// duration. Anything else yields DefaultThreshold.
func ParseThreshold(value string) time.Duration {
	lower := strings.ToLower(strings.TrimSpace(value))
	for _, u := range thresholdUnits {
		if !strings.HasSuffix(lower, u.suffix) {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimRight(lower, u.suffix), 10, 64)
		if err != nil {
			return DefaultThreshold
		}
		return time.Duration(n) * u.unit
	}
	return DefaultThreshold
}
