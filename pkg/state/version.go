// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"
	"math"
)

// VersionOverflowError is returned when a version exceeds i64::MAX and
// cannot be stored in the tracking table's BIGINT column (spec §4.7,
// "Version domain": "overflow is an error, not silent corruption").
type VersionOverflowError struct {
	Version uint64
}

func (e VersionOverflowError) Error() string {
	return fmt.Sprintf("version %d exceeds the maximum storable version (%d)", e.Version, int64(math.MaxInt64))
}

// u64ToI64 applies the checked u64 -> i64 cast spec §4.7 requires at the
// write boundary: versions in [0, i64::MAX] round-trip, u64::MAX and
// anything above i64::MAX is rejected.
func u64ToI64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, VersionOverflowError{Version: v}
	}
	return int64(v), nil
}

// i64ToU64 applies the clamping i64 -> u64 read spec §4.7 requires:
// negative values (which should never occur given the write-side check,
// but could appear if a row was inserted by hand) clamp to 0 rather than
// wrapping around to a huge unsigned value.
func i64ToU64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
