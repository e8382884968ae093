package moderation

import (
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)([dhms])$`)

const (
	// MinActionDuration is the shortest accepted duration for any
	// time-bounded action.
	MinActionDuration = time.Minute

	// MaxMuteDuration matches the platform's timeout ceiling.
	MaxMuteDuration = 28 * 24 * time.Hour
)

// ParseDuration reads a compact duration like "13d", "2h", "30m" or "45s".
// A string that does not match the format at all is an invalid-format
// denial, distinct from the range denials applied afterwards.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidDuration
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, ErrInvalidDuration
	}
	switch m[2] {
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	default:
		return time.Duration(value) * time.Second, nil
	}
}
