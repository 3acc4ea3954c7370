package mpd

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?$|^P(?:(\d+)D)?T?(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// parseFloat parses a plain decimal float attribute.
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// parseISODuration parses a restricted xs:duration value ("PT1.5S",
// "PT10M", "P1DT2H") into seconds. Returns 0, nil for an empty string.
func parseISODuration(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %q", s)
	}
	var total float64
	// Group 1-3: PT-only form (no days). Group 4-7: P[nD]T form.
	if m[1] != "" || m[2] != "" || m[3] != "" {
		total += parseComponent(m[1]) * 3600
		total += parseComponent(m[2]) * 60
		total += parseComponent(m[3])
	} else {
		total += parseComponent(m[4]) * 86400
		total += parseComponent(m[5]) * 3600
		total += parseComponent(m[6]) * 60
		total += parseComponent(m[7])
	}
	return total, nil
}

func parseComponent(s string) float64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseDateTime parses an ISO 8601 / xs:dateTime timestamp, as used for
// @availabilityStartTime.
func parseDateTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// parseIntPtr parses a signed integer attribute, returning nil for an empty
// string.
func parseIntPtr(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseIntOrDefault parses an integer attribute, falling back to def.
func parseIntOrDefault(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
