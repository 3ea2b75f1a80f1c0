package timecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned for time strings that are not mm:ss or hh:mm:ss
var ErrInvalidFormat = errors.New("invalid time format")

// Parse converts a "mm:ss" or "hh:mm:ss" string to a number of seconds.
//
// Fields are not range checked: "0:75" is 75 seconds and "90:00" is 5400.
func Parse(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q, use mm:ss or hh:mm:ss", ErrInvalidFormat, s)
	}

	total := 0
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 31)
		if err != nil {
			return 0, fmt.Errorf("%w: %q, use mm:ss or hh:mm:ss", ErrInvalidFormat, s)
		}
		total = total*60 + int(n)
	}
	return total, nil
}

// Format renders seconds as hh:mm:ss
func Format(sec int) string {
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec%3600/60, sec%60)
}
