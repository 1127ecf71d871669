package upload

import (
	"errors"
	"fmt"
)

// MaxBlocks is the number of blocks whose ids all have the same length. The block
// service rejects lists with ids of different lengths.
const MaxBlocks = 10000

// ErrTooManyBlocks is returned when a container needs more than MaxBlocks blocks.
var ErrTooManyBlocks = errors.New("too many blocks")

// Block is one contiguous slice of the container.
type Block struct {
	ID     string
	Offset int64
	Length int64
}

// BlockID returns the id of the i-th block.
func BlockID(i int) string {
	return fmt.Sprintf("%04d", i)
}

// Partition splits length bytes into blocks of chunkSize bytes; the last block
// holds the remainder. An empty stream has no blocks.
func Partition(length, chunkSize int64) []Block {
	if length <= 0 {
		return nil
	}

	if chunkSize <= 0 {
		chunkSize = length
	}

	count := (length + chunkSize - 1) / chunkSize
	blocks := make([]Block, 0, count)

	for i := int64(0); i < count; i++ {
		offset := i * chunkSize
		blocks = append(blocks, Block{
			ID:     BlockID(int(i)),
			Offset: offset,
			Length: min(chunkSize, length-offset),
		})
	}

	return blocks
}
