// Package webkittime converts between Go time.Time values and the WebKit
// timestamp convention used by the on-disk history format: a 64-bit count of
// microseconds since 1601-01-01 UTC.
//
// Both directions stay in 64-bit integer arithmetic end to end. Present-day
// values exceed 2^53, so routing them through a float64 silently truncates
// the low bits.
package webkittime

import "time"

// epochOffsetMillis is the span between 1601-01-01 and 1970-01-01 in
// milliseconds.
const epochOffsetMillis int64 = 11_644_473_600_000

// FromTime converts an instant to a WebKit timestamp (microseconds since
// 1601-01-01 UTC). Precision is milliseconds; sub-millisecond detail is
// dropped, matching the stored format.
func FromTime(t time.Time) int64 {
	return (t.UnixMilli() + epochOffsetMillis) * 1000
}

// ToTime converts a WebKit timestamp back to an instant in UTC.
func ToTime(ts int64) time.Time {
	return time.UnixMilli(ts/1000 - epochOffsetMillis).UTC()
}
