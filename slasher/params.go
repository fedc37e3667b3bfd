package slasher

import (
	"math"

	types "github.com/prysmaticlabs/eth2-types"
	"github.com/pkg/errors"
)

// maxUint16 is the sentinel distance value reserved to mean "no constraint
// recorded" in a min-target chunk. It can never be a legitimate distance.
const maxUint16 = math.MaxUint16

// Parameters bundles the chunking configuration shared by every chunk slice
// and by the batch orchestrator. All fields are unexported: callers build a
// Parameters through DefaultParams or NewParams, never by struct literal from
// outside the package, so the validity invariants below always hold once
// NewParams has returned successfully.
type Parameters struct {
	chunkSize          uint64
	validatorChunkSize uint64
	historyLength      uint64
}

// DefaultParams returns production-sized defaults: 54000 epochs of history
// (about eight months of mainnet epochs), 16 epochs per chunk, 256 validators per
// validator-chunk.
func DefaultParams() *Parameters {
	return &Parameters{
		chunkSize:          16,
		validatorChunkSize: 256,
		historyLength:      54000,
	}
}

// NewParams validates and constructs a Parameters. historyLength must be a
// positive multiple of chunkSize, and strictly less than the 16-bit distance
// sentinel, or ConfigInvalid is returned.
func NewParams(historyLength, chunkSize, validatorChunkSize uint64) (*Parameters, error) {
	if chunkSize == 0 || validatorChunkSize == 0 || historyLength == 0 {
		return nil, errors.Wrap(ErrConfigInvalid, "chunk size, validator chunk size, and history length must be positive")
	}
	if historyLength%chunkSize != 0 {
		return nil, errors.Wrap(ErrConfigInvalid, "history length must be a multiple of chunk size")
	}
	if historyLength >= maxUint16 {
		return nil, errors.Wrap(ErrConfigInvalid, "history length must be strictly less than the distance sentinel")
	}
	return &Parameters{
		chunkSize:          chunkSize,
		validatorChunkSize: validatorChunkSize,
		historyLength:      historyLength,
	}, nil
}

// validatorChunkIndex returns v / K.
func (p *Parameters) validatorChunkIndex(v types.ValidatorIndex) uint64 {
	return uint64(v) / p.validatorChunkSize
}

// validatorOffset returns v mod K, the row of v within its validator-chunk.
func (p *Parameters) validatorOffset(v types.ValidatorIndex) uint64 {
	return uint64(v) % p.validatorChunkSize
}

// chunkIndex returns (e mod H) / C, the cyclic chunk coordinate of epoch e.
func (p *Parameters) chunkIndex(e types.Epoch) uint64 {
	return (uint64(e) % p.historyLength) / p.chunkSize
}

// chunkOffset returns e mod C, the column of e within its chunk.
func (p *Parameters) chunkOffset(e types.Epoch) uint64 {
	return uint64(e) % p.chunkSize
}

// cellIndex returns the row-major position of (v, e) within a flattened
// chunk slice: validatorOffset*C + chunkOffset.
func (p *Parameters) cellIndex(v types.ValidatorIndex, e types.Epoch) uint64 {
	return p.validatorOffset(v)*p.chunkSize + p.chunkOffset(e)
}

// chunkDataLength is the number of 16-bit cells in one chunk: C * K.
func (p *Parameters) chunkDataLength() uint64 {
	return p.chunkSize * p.validatorChunkSize
}

// windowFloor returns max(0, currentEpoch - H + 1), the oldest epoch whose
// source is still reliably checkable against the sliding window.
func (p *Parameters) windowFloor(currentEpoch types.Epoch) types.Epoch {
	h := types.Epoch(p.historyLength)
	if currentEpoch+1 < h {
		return 0
	}
	return currentEpoch + 1 - h
}

// diskKey produces the fixed-width, lexicographically-ordered chunk key:
// validatorChunkIndex (8 BE bytes) || chunkIndex (8 BE bytes).
func diskKey(validatorChunkIndex, chunkIndex uint64) []byte {
	key := make([]byte, 16)
	putUint64BE(key[0:8], validatorChunkIndex)
	putUint64BE(key[8:16], chunkIndex)
	return key
}

func putUint64BE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[7-i] = byte(v >> (8 * i))
	}
}

// attestingValidatorsForChunk returns the subset of att's attesting indices
// whose validator chunk index equals vci, preserving attestation order.
func attestingValidatorsForChunk(att *CompactAttestation, p *Parameters, vci uint64) []types.ValidatorIndex {
	out := make([]types.ValidatorIndex, 0, len(att.AttestingIndices))
	for _, idx := range att.AttestingIndices {
		v := types.ValidatorIndex(idx)
		if p.validatorChunkIndex(v) == vci {
			out = append(out, v)
		}
	}
	return out
}
