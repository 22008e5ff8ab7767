package registry

import (
	"fmt"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// AgeAt is the number of whole years from birth to ref.
func AgeAt(birth, ref time.Time) int {
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return age
}

// stripTime drops a trailing time component separated by 'T' or a space.
func stripTime(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		return s[:i]
	}
	return s
}

// parseDate2019 accepts YYYY-MM-DD and D/M/YYYY, with an optional time.
func parseDate2019(raw string) (time.Time, bool, error) {
	s := stripTime(raw)
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range []string{isoDate, "2/1/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", raw)
}

// parseDate2023 accepts M/D/YYYY with an optional time.
func parseDate2023(raw string) (time.Time, bool, error) {
	s := stripTime(raw)
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse("1/2/2006", s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unrecognized date %q", raw)
	}
	return t, true, nil
}
