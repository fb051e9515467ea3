package restore

import (
	"strconv"
	"strings"
	"time"
)

const wmiLayout = "20060102150405"

// ParseWMITime parses a CIM DATETIME string such as "20260124162444.000000-000".
// Only the leading YYYYMMDDHHMMSS digits are required. The trailing minute
// offset is applied when it is present and numeric; otherwise the time is
// interpreted in the local zone. ok is false when the value is unusable.
func ParseWMITime(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(wmiLayout) {
		return time.Time{}, false
	}

	loc := time.Local
	if len(raw) >= 25 && raw[14] == '.' && (raw[21] == '+' || raw[21] == '-') {
		if mins, err := strconv.Atoi(raw[22:25]); err == nil {
			offset := mins * 60
			if raw[21] == '-' {
				offset = -offset
			}
			loc = time.FixedZone("", offset)
		}
	}

	t, err := time.ParseInLocation(wmiLayout, raw[:len(wmiLayout)], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
