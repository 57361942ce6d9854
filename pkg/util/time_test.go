package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2026-03-02T09:30:00Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestBucketStart(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 31, 45, 0, time.UTC)
	got := BucketStart(ts, 120)
	want := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("bucket start = %v, want %v", got, want)
	}
	// a timestamp on the boundary stays on the boundary
	if b := BucketStart(want, 120); !b.Equal(want) {
		t.Fatalf("boundary moved to %v", b)
	}
}

func TestAlignRange(t *testing.T) {
	from := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	to := time.Date(2026, 3, 2, 10, 0, 59, 0, time.UTC)
	f, tt := AlignRange(from, to, 60)
	if f.Second() != 0 || tt.Second() != 0 {
		t.Fatalf("range not aligned: %v %v", f, tt)
	}
}
