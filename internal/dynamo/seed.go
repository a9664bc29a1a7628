package dynamo

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	streamSalt    = 0x9e3779b97f4a7c15
	sequenceSalt  = 0xbf58476d1ce4e5b9
	seedTupleSize = 24
)

// TrialSeed holds the two words of a per-trial PCG generator.
type TrialSeed struct {
	Stream   uint64
	Sequence uint64
}

// SplitSeed derives the seed of trial index from the base seed. The result
// depends only on (base, index), never on scheduling.
func SplitSeed(base uint64, index int) TrialSeed {
	return TrialSeed{
		Stream:   hashTuple(base, uint64(index), streamSalt),
		Sequence: hashTuple(base, uint64(index), sequenceSalt),
	}
}

func hashTuple(base, index, salt uint64) uint64 {
	var buf [seedTupleSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], base)
	binary.LittleEndian.PutUint64(buf[8:16], index)
	binary.LittleEndian.PutUint64(buf[16:24], salt)
	return xxhash.Sum64(buf[:])
}
