package model

import "math"

type Item struct {
	Value []byte

	Flags uint16
	// Size is the declared byte length of Value. It is recomputed only by
	// append and prepend.
	Size int

	// ExpUnix is Unix seconds. The item is logically absent once the clock
	// has moved past it.
	ExpUnix int64
}

// NewItem converts a relative exptime in seconds into an absolute expiry.
// A negative exptime creates an item that is already expired.
func NewItem(flags uint16, exptime int64, value []byte, size int, now int64) Item {
	return Item{
		Value:   value,
		Flags:   flags,
		Size:    size,
		ExpUnix: expiresAt(exptime, now),
	}
}

func (it Item) Expired(now int64) bool {
	return it.ExpUnix < now
}

func expiresAt(exptime, now int64) int64 {
	if exptime < 0 {
		return now - 1
	}
	if exptime > math.MaxInt64-now {
		return math.MaxInt64
	}
	return now + exptime
}
