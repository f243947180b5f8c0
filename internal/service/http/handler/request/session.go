package request

import (
	"fmt"
	"time"
)

type SessionURI struct {
	ID string `uri:"id" binding:"required"`
}

type GetSession struct {
	IncludeExpired bool `form:"include_expired"`
}

type Dimensions struct {
	Width  *int `json:"width"`
	Height *int `json:"height"`
}

func (d *Dimensions) Valid() error {
	if d.Width == nil || d.Height == nil {
		return fmt.Errorf("width and height are required")
	}
	if *d.Width < 0 || *d.Height < 0 {
		return fmt.Errorf("width and height must not be negative")
	}
	return nil
}

const dateLayout = "2006-01-02"

type CountsByDate struct {
	Start string `form:"start"`
	End   string `form:"end"`
}

// Range parses start and end as RFC3339 or YYYY-MM-DD. A bare end date covers
// that whole day.
func (c *CountsByDate) Range() (time.Time, time.Time, error) {
	if c.Start == "" || c.End == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start and end are required")
	}
	start, _, err := parseTime(c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	end, dateOnly, err := parseTime(c.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end is before start")
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	return t, true, err
}
