package storage

import "time"

// fixedPointShift expresses the storage timestamp unit: 1/2^30 second since
// the Unix epoch, per the spec's fixed-point time format.
const fixedPointShift = 30

// fixedPointUnit is 2^30, the number of Timestamp ticks per second.
const fixedPointUnit = 1 << fixedPointShift

// Timestamp is a fixed-point instant, 1/2^30 second since the Unix epoch.
type Timestamp uint64

// FromTime converts a time.Time into the fixed-point Timestamp format.
func FromTime(t time.Time) Timestamp {
	sec := uint64(t.Unix())
	frac := uint64(t.Nanosecond()) * fixedPointUnit / 1e9
	return Timestamp(sec<<fixedPointShift | frac)
}

// Time converts a Timestamp back into a time.Time (UTC).
func (t Timestamp) Time() time.Time {
	sec := int64(t >> fixedPointShift)
	frac := uint64(t) & (fixedPointUnit - 1)
	nsec := int64(frac * 1e9 / fixedPointUnit)
	return time.Unix(sec, nsec).UTC()
}
