package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDaySeconds parses HH:MM:SS (or HH:MM), possibly with hours >= 24.
// An empty string yields -1.
func ParseDaySeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("gtfs: invalid time %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return 0, fmt.Errorf("gtfs: invalid time %q", s)
		}
		vals[i] = v
	}
	if vals[1] > 59 || vals[2] > 59 {
		return 0, fmt.Errorf("gtfs: invalid time %q", s)
	}
	return vals[0]*3600 + vals[1]*60 + vals[2], nil
}

// FormatDaySeconds is the inverse of ParseDaySeconds.
func FormatDaySeconds(sec int) string {
	if sec < 0 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec%3600/60, sec%60)
}

// ParseDate parses the YYYYMMDD form used by calendar files.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("gtfs: invalid date %q", s)
	}
	return t, nil
}
