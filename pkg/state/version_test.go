// SPDX-License-Identifier: Apache-2.0

package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU64ToI64RoundTrips(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{0, 1, 1700000000, math.MaxInt64} {
		i, err := u64ToI64(v)
		require.NoError(t, err)
		assert.Equal(t, v, i64ToU64(i))
	}
}

func TestU64ToI64RejectsOverflow(t *testing.T) {
	t.Parallel()

	_, err := u64ToI64(math.MaxUint64)
	require.Error(t, err)
	var overflowErr VersionOverflowError
	require.ErrorAs(t, err, &overflowErr)
	assert.Equal(t, uint64(math.MaxUint64), overflowErr.Version)
}

func TestI64ToU64ClampsNegative(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), i64ToU64(-1))
	assert.Equal(t, uint64(0), i64ToU64(-1700000000))
}
