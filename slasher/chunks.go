package slasher

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	types "github.com/prysmaticlabs/eth2-types"
)

// Chunker is the capability set both array kinds implement: access to the
// flat cell array, a slashable-status check against one cell, an in-place
// update walk, and the neutral element used to recognize "untouched" cells.
// MIN and MAX share this skeleton and differ only in direction, sentinel,
// and comparison.
type Chunker interface {
	Chunk() []uint16
	NeutralElement() uint16
	CheckSlashable(ctx context.Context, db Database, validatorIdx types.ValidatorIndex, att *CompactAttestation) (SlashingKind, error)
	Update(chunkIndex uint64, validatorIdx types.ValidatorIndex, startEpoch, currentEpoch, newTarget types.Epoch) (bool, error)
}

// MinSpanChunksSlice holds one min-target chunk tile: for every (v, e) the
// smallest target ever seen for an attestation by v with source >= e.
type MinSpanChunksSlice struct {
	params *Parameters
	data   []uint16
}

// MaxSpanChunksSlice holds one max-target chunk tile: for every (v, e) the
// largest target ever seen for an attestation by v with source <= e.
type MaxSpanChunksSlice struct {
	params *Parameters
	data   []uint16
}

// EmptyMinSpanChunksSlice allocates a chunk with every cell set to the
// sentinel meaning "no constraint recorded".
func EmptyMinSpanChunksSlice(p *Parameters) *MinSpanChunksSlice {
	data := make([]uint16, p.chunkDataLength())
	for i := range data {
		data[i] = maxUint16
	}
	return &MinSpanChunksSlice{params: p, data: data}
}

// EmptyMaxSpanChunksSlice allocates a chunk with every cell zeroed, meaning
// "no target ever recorded beyond this epoch".
func EmptyMaxSpanChunksSlice(p *Parameters) *MaxSpanChunksSlice {
	return &MaxSpanChunksSlice{params: p, data: make([]uint16, p.chunkDataLength())}
}

// MinChunkSpansSliceFrom wraps an already-decoded cell array as a min chunk,
// validating its length matches this configuration's C*K.
func MinChunkSpansSliceFrom(p *Parameters, data []uint16) (*MinSpanChunksSlice, error) {
	if uint64(len(data)) != p.chunkDataLength() {
		return nil, fmt.Errorf("chunk has wrong length, expected %d, got %d", p.chunkDataLength(), len(data))
	}
	return &MinSpanChunksSlice{params: p, data: data}, nil
}

// MaxChunkSpansSliceFrom wraps an already-decoded cell array as a max chunk,
// validating its length matches this configuration's C*K.
func MaxChunkSpansSliceFrom(p *Parameters, data []uint16) (*MaxSpanChunksSlice, error) {
	if uint64(len(data)) != p.chunkDataLength() {
		return nil, fmt.Errorf("chunk has wrong length, expected %d, got %d", p.chunkDataLength(), len(data))
	}
	return &MaxSpanChunksSlice{params: p, data: data}, nil
}

// Chunk returns the underlying flat cell array.
func (m *MinSpanChunksSlice) Chunk() []uint16 { return m.data }

// Chunk returns the underlying flat cell array.
func (m *MaxSpanChunksSlice) Chunk() []uint16 { return m.data }

// NeutralElement is the sentinel meaning "no constraint recorded" for a min chunk.
func (m *MinSpanChunksSlice) NeutralElement() uint16 { return maxUint16 }

// NeutralElement is the sentinel meaning "no target recorded" for a max chunk.
func (m *MaxSpanChunksSlice) NeutralElement() uint16 { return 0 }

// CheckSlashable implements the MIN-kind check: if the attestation's target
// exceeds the recorded minimum target at its source epoch, the attestation
// surrounds a previously recorded one. The evidence is only real if the
// Attester Record Store actually has a record at that min target; its
// absence downgrades the result to NotSlashable rather than erroring, since
// the comparison alone cannot distinguish "never recorded" from "recorded,
// then pruned".
func (m *MinSpanChunksSlice) CheckSlashable(
	ctx context.Context, db Database, validatorIdx types.ValidatorIndex, att *CompactAttestation,
) (SlashingKind, error) {
	source := types.Epoch(att.Source)
	distance, err := chunkCellDistance(m.params, m.data, validatorIdx, source)
	if err != nil {
		return NotSlashable, errors.Wrap(err, "could not get min target for validator")
	}
	if uint16(distance) == m.NeutralElement() {
		return NotSlashable, nil
	}
	minTarget := source + distance
	if att.Target <= uint64(minTarget) {
		return NotSlashable, nil
	}
	if db == nil {
		return NotSlashable, nil
	}
	existing, err := db.AttestationRecordForValidator(ctx, validatorIdx, minTarget)
	if err != nil {
		return NotSlashable, errors.Wrap(err, "could not fetch attester record")
	}
	if existing == nil {
		return NotSlashable, nil
	}
	return SurroundingVote, nil
}

// CheckSlashable implements the MAX-kind check: if the attestation's target
// is less than the recorded maximum target at its source epoch, the
// attestation is surrounded by a previously recorded one. See
// MinSpanChunksSlice.CheckSlashable for the evidence-absence rationale.
func (m *MaxSpanChunksSlice) CheckSlashable(
	ctx context.Context, db Database, validatorIdx types.ValidatorIndex, att *CompactAttestation,
) (SlashingKind, error) {
	source := types.Epoch(att.Source)
	distance, err := chunkCellDistance(m.params, m.data, validatorIdx, source)
	if err != nil {
		return NotSlashable, errors.Wrap(err, "could not get max target for validator")
	}
	if uint16(distance) == m.NeutralElement() {
		return NotSlashable, nil
	}
	maxTarget := source + distance
	if att.Target >= uint64(maxTarget) {
		return NotSlashable, nil
	}
	if db == nil {
		return NotSlashable, nil
	}
	existing, err := db.AttestationRecordForValidator(ctx, validatorIdx, maxTarget)
	if err != nil {
		return NotSlashable, errors.Wrap(err, "could not fetch attester record")
	}
	if existing == nil {
		return NotSlashable, nil
	}
	return SurroundedVote, nil
}

// Update rewrites cells (v, e) for e walking backwards from startEpoch while
// new_distance = newTarget - e tightens the existing value, stopping as soon
// as a cell fails to improve — the window floor gets no special treatment;
// it is written only if it too improves. No epoch below the window floor is
// ever written: the walk stops there, including when startEpoch itself lies
// below the floor. Returns true iff the walk improved
// every cell in this chunk and should continue into the previous chunk.
func (m *MinSpanChunksSlice) Update(
	chunkIndex uint64, validatorIdx types.ValidatorIndex, startEpoch, currentEpoch, newTarget types.Epoch,
) (bool, error) {
	p := m.params
	floor := p.windowFloor(currentEpoch)
	e := startEpoch
	for {
		if e < floor {
			return false, nil
		}
		if p.chunkIndex(e) != chunkIndex {
			return true, nil
		}
		newDistance, ok := epochDistance(newTarget, e)
		if !ok {
			return false, nil
		}
		existingDistance, err := chunkCellDistance(p, m.data, validatorIdx, e)
		if err != nil {
			return false, err
		}
		if newDistance >= existingDistance {
			return false, nil
		}
		if err := setChunkDataAtEpoch(p, m.data, validatorIdx, e, newTarget); err != nil {
			return false, err
		}
		if e == floor {
			return false, nil
		}
		if e == 0 {
			return false, nil
		}
		e--
	}
}

// Update rewrites cells (v, e) for e walking forwards from startEpoch while
// new_distance = newTarget - e raises the existing value, stopping as soon
// as a cell fails to improve — current epoch gets no special treatment; it
// is written only if it too improves. Returns true iff the walk improved
// every cell in this chunk and should continue into the next chunk.
func (m *MaxSpanChunksSlice) Update(
	chunkIndex uint64, validatorIdx types.ValidatorIndex, startEpoch, currentEpoch, newTarget types.Epoch,
) (bool, error) {
	p := m.params
	e := startEpoch
	for {
		if p.chunkIndex(e) != chunkIndex {
			return true, nil
		}
		newDistance, ok := epochDistance(newTarget, e)
		if !ok {
			return false, nil
		}
		existingDistance, err := chunkCellDistance(p, m.data, validatorIdx, e)
		if err != nil {
			return false, err
		}
		if newDistance <= existingDistance {
			return false, nil
		}
		if err := setChunkDataAtEpoch(p, m.data, validatorIdx, e, newTarget); err != nil {
			return false, err
		}
		if e == currentEpoch {
			return false, nil
		}
		e++
	}
}

// epochDistance computes target - e as a uint16 distance, returning ok=false
// when target < e (the MAX walk runs past its own target epoch; this is not
// an error, it just means "not better" at that cell) or when the true
// distance would reach or exceed the sentinel.
func epochDistance(target, e types.Epoch) (types.Epoch, bool) {
	if target < e {
		return 0, false
	}
	d := target - e
	if uint64(d) >= maxUint16 {
		return 0, false
	}
	return d, true
}

// chunkDataAtEpoch reconstructs the target epoch stored at (v, e): e + cell.
func chunkDataAtEpoch(p *Parameters, data []uint16, v types.ValidatorIndex, e types.Epoch) (types.Epoch, error) {
	if uint64(len(data)) != p.chunkDataLength() {
		return 0, fmt.Errorf("chunk has wrong length, expected %d, got %d", p.chunkDataLength(), len(data))
	}
	idx := p.cellIndex(v, e)
	if idx >= uint64(len(data)) {
		return 0, ErrChunkIndexOutOfBounds
	}
	return e + types.Epoch(data[idx]), nil
}

// chunkCellDistance returns the raw stored distance at (v, e), without
// reconstructing the target epoch.
func chunkCellDistance(p *Parameters, data []uint16, v types.ValidatorIndex, e types.Epoch) (types.Epoch, error) {
	idx := p.cellIndex(v, e)
	if idx >= uint64(len(data)) {
		return 0, ErrChunkIndexOutOfBounds
	}
	return types.Epoch(data[idx]), nil
}

// setChunkDataAtEpoch stores targetEpoch at (v, e) as the distance
// targetEpoch - e, rejecting writes that would over/underflow the 16-bit cell.
func setChunkDataAtEpoch(p *Parameters, data []uint16, v types.ValidatorIndex, e, targetEpoch types.Epoch) error {
	if uint64(len(data)) != p.chunkDataLength() {
		return fmt.Errorf("chunk has wrong length, expected %d, got %d", p.chunkDataLength(), len(data))
	}
	if targetEpoch < e {
		return errors.Wrap(ErrDistanceCalculationOverflow, "target epoch precedes cell epoch")
	}
	distance := targetEpoch - e
	if uint64(distance) >= maxUint16 {
		return errors.Wrap(ErrDistanceTooLarge, "distance at or above sentinel")
	}
	idx := p.cellIndex(v, e)
	if idx >= uint64(len(data)) {
		return ErrChunkIndexOutOfBounds
	}
	data[idx] = uint16(distance)
	return nil
}

// firstStartEpoch computes where an update walk begins: min starts at
// source-1 if source > 0 (nothing to tighten below epoch 0); max starts at
// source+1 if source < currentEpoch (nothing to raise once source has
// caught up with the present).
func firstStartEpoch(kind slashingArrayKind, source, currentEpoch types.Epoch) (types.Epoch, bool) {
	switch kind {
	case minKind:
		if source == 0 {
			return 0, false
		}
		return source - 1, true
	case maxKind:
		if source < currentEpoch {
			return source + 1, true
		}
		return 0, false
	default:
		return 0, false
	}
}

type slashingArrayKind int

const (
	minKind slashingArrayKind = iota
	maxKind
)

// nextChunkBoundary advances the cursor once a walk has left its chunk: a
// MIN walk continues at the previous chunk's last epoch, a MAX walk
// continues at the next chunk's first epoch. Both share one chunk start
// (e - chunkOffset(e)), since e is still the original startEpoch the walk
// was handed, not a mid-walk cursor value.
func nextChunkBoundary(kind slashingArrayKind, p *Parameters, e types.Epoch) (nextChunkIndex uint64, nextStart types.Epoch) {
	offset := p.chunkOffset(e)
	switch kind {
	case minKind:
		chunkStart := e - types.Epoch(offset)
		prevLastEpoch := chunkStart - 1
		return p.chunkIndex(prevLastEpoch), prevLastEpoch
	default:
		chunkStart := e - types.Epoch(offset)
		nextFirstEpoch := chunkStart + types.Epoch(p.chunkSize)
		return p.chunkIndex(nextFirstEpoch), nextFirstEpoch
	}
}
