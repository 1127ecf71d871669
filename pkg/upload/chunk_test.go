package upload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPartitionCoversStream checks contiguity, count and ids for many sizes.
func TestPartitionCoversStream(t *testing.T) {
	t.Parallel()

	for _, chunk := range []int64{1, 3, 16, 1000} {
		for length := int64(0); length <= 50; length++ {
			blocks := Partition(length, chunk)
			require.Len(t, blocks, int((length+chunk-1)/chunk), "L=%d C=%d", length, chunk)

			var next int64
			for i, b := range blocks {
				require.Equal(t, BlockID(i), b.ID)
				require.Equal(t, next, b.Offset)
				require.Positive(t, b.Length)
				require.LessOrEqual(t, b.Length, chunk)
				next += b.Length
			}
			require.Equal(t, length, next)
		}
	}
}

// TestPartitionExample splits 10 MiB into 4, 4 and 2 MiB.
func TestPartitionExample(t *testing.T) {
	t.Parallel()

	const mib = 1 << 20

	blocks := Partition(10*mib, 4*mib)
	require.Equal(t, []Block{
		{ID: "0000", Offset: 0, Length: 4 * mib},
		{ID: "0001", Offset: 4 * mib, Length: 4 * mib},
		{ID: "0002", Offset: 8 * mib, Length: 2 * mib},
	}, blocks)

	require.Empty(t, Partition(0, 4*mib))
	require.Equal(t, "0123", BlockID(123))
}

// TestBlockIDWidth keeps every id up to MaxBlocks at four digits.
func TestBlockIDWidth(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0000", BlockID(0))
	require.Equal(t, "9999", BlockID(MaxBlocks-1))
	require.Len(t, Partition(MaxBlocks, 1), MaxBlocks)
	require.Len(t, Partition(MaxBlocks, 1)[MaxBlocks-1].ID, 4)
}
