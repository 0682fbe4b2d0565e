package ledger

import (
	"time"
)

// =============================================================================
// BUSINESS CLOCK - "now" in the business timezone
// =============================================================================

// DefaultOffsetMinutes is the business timezone offset from UTC, in minutes.
// The distribution network operates on East Africa Time (UTC+3).
const DefaultOffsetMinutes = 180

// Clock provides "now" shifted into the business timezone. Price
// recalculation and ledger timestamping go through the same clock so a
// single configuration value controls every "now" in the system.
type Clock struct {
	offset time.Duration
}

func NewClock(offsetMinutes int) *Clock {
	return &Clock{offset: time.Duration(offsetMinutes) * time.Minute}
}

// Now returns the current instant expressed in the business timezone.
func (c *Clock) Now() time.Time {
	zone := time.FixedZone("business", int(c.offset.Seconds()))
	return time.Now().UTC().In(zone)
}

// Today returns midnight of the current business day.
func (c *Clock) Today() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// =============================================================================
// DATE FORMATS - wire representation of business dates
// =============================================================================

const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02 15:04:05"
)

// ParseDate accepts YYYY-MM-DD or YYYY-MM-DD HH:MM:SS.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateTimeFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, Invalidf("invalid date %q (use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)", s)
	}
	return t, nil
}

// FormatDateTime renders a time in the wire datetime format.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeFormat)
}
