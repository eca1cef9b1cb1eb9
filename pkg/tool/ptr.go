package tool

import "time"

// NilIfEmpty returns nil for "" so optional text columns store NULL.
func NilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MillisToTime converts an optional unix-millisecond timestamp to UTC.
func MillisToTime(ms *int64) *time.Time {
	if ms == nil || *ms <= 0 {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
