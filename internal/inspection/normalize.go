package inspection

import (
	"strings"
	"time"
)

const (
	// DateLayout is the editable date form.
	DateLayout = "2006-01-02"
	// TimeLayout is the editable hour:minute form.
	TimeLayout = "15:04"
	// DisplayDateLayout is the zh-TW list rendering of a date.
	DisplayDateLayout = "2006/01/02"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var localTimestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
}

var clockLayouts = []string{
	TimeLayout,
	"15:04:05",
	"15:04:05.000",
	"3:04 PM",
	"15:4",
}

// NormalizeDate converts a fetched date or timestamp into DateLayout. Values
// that cannot be parsed are returned unchanged.
func NormalizeDate(raw string, loc *time.Location) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if ts, ok := parseTimestamp(value, loc); ok {
		return ts.Format(DateLayout)
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d.Format(DateLayout)
		}
	}
	return raw
}

// NormalizeTime converts a fetched time or timestamp into TimeLayout. Values
// that cannot be parsed are returned unchanged.
func NormalizeTime(raw string, loc *time.Location) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if ts, ok := parseTimestamp(value, loc); ok {
		return ts.Format(TimeLayout)
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(TimeLayout)
		}
	}
	return raw
}

// DisplayDate renders an editable date for the record list.
func DisplayDate(value string) string {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return d.Format(DisplayDateLayout)
}

func parseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.In(loc), true
		}
	}
	for _, layout := range localTimestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
