package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// BucketStart returns the start of the fixed-width bucket containing ts.
// widthSec must be > 0.
func BucketStart(ts time.Time, widthSec int64) time.Time {
	sec := ts.Unix()
	return time.Unix((sec/widthSec)*widthSec, 0).UTC()
}

// AlignRange truncates the time range to bucket boundaries for the given width.
func AlignRange(from, to time.Time, widthSec int64) (time.Time, time.Time) {
	if widthSec <= 0 {
		return from, to
	}
	return BucketStart(from, widthSec), BucketStart(to, widthSec)
}
