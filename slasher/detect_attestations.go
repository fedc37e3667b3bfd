package slasher

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	types "github.com/prysmaticlabs/eth2-types"
)

// Engine drives the batch orchestrator against a Database and a fixed
// chunking configuration. One Engine is shared by every batch the ingestion
// service processes.
type Engine struct {
	params *Parameters
	db     Database
}

// NewEngine wires a chunking configuration to the store that will back it.
func NewEngine(params *Parameters, db Database) *Engine {
	return &Engine{params: params, db: db}
}

// ProcessBatch groups a batch of attestations by validator chunk index,
// checks each group for double votes, then drives the MIN and MAX array
// passes over it, returning every confirmed slashing. Validator chunks are
// processed and persisted one at a time, and each store call commits on its
// own: an error returns no slashings, but writes already committed for
// earlier validator chunks, or by earlier store calls for the failing one,
// stay in the store.
func (e *Engine) ProcessBatch(
	ctx context.Context, attestations []*CompactAttestation, currentEpoch types.Epoch,
) ([]*AttesterSlashing, error) {
	windowFloor := e.params.windowFloor(currentEpoch)
	filtered := make([]*CompactAttestation, 0, len(attestations))
	for _, att := range attestations {
		if types.Epoch(att.Source) < windowFloor {
			log.WithField("source", att.Source).WithField("windowFloor", windowFloor).
				Warn("dropping attestation with source below the retained window")
			attestationsDroppedTotal.WithLabelValues("below_window_floor").Inc()
			continue
		}
		filtered = append(filtered, att)
	}

	byValidatorChunk := groupByValidatorChunkIndex(e.params, filtered)
	vcis := make([]uint64, 0, len(byValidatorChunk))
	for vci := range byValidatorChunk {
		vcis = append(vcis, vci)
	}
	sort.Slice(vcis, func(i, j int) bool { return vcis[i] < vcis[j] })

	var slashings []*AttesterSlashing
	for _, vci := range vcis {
		found, err := e.processValidatorChunk(ctx, vci, byValidatorChunk[vci], currentEpoch)
		if err != nil {
			return nil, err
		}
		slashings = append(slashings, found...)
	}
	return dedupeSlashings(slashings), nil
}

// processValidatorChunk runs the double-vote check and both array passes
// for one validator_chunk_index's worth of attestations, then flushes
// whichever chunks either pass touched.
func (e *Engine) processValidatorChunk(
	ctx context.Context, vci uint64, atts []*CompactAttestation, currentEpoch types.Epoch,
) ([]*AttesterSlashing, error) {
	bySourceChunk := groupByChunkIndex(e.params, atts)
	sourceChunkIndices := make([]uint64, 0, len(bySourceChunk))
	for idx := range bySourceChunk {
		sourceChunkIndices = append(sourceChunkIndices, idx)
	}
	sort.Slice(sourceChunkIndices, func(i, j int) bool { return sourceChunkIndices[i] < sourceChunkIndices[j] })

	var slashings []*AttesterSlashing
	seenRecords := make(map[doubleVoteKey]*CompactAttestation)
	for _, idx := range sourceChunkIndices {
		for _, att := range bySourceChunk[idx] {
			for _, v := range attestingValidatorsForChunk(att, e.params, vci) {
				dv, err := e.checkDoubleVote(ctx, seenRecords, v, att)
				if err != nil {
					return nil, err
				}
				if dv != nil {
					slashings = append(slashings, dv)
				}
			}
		}
	}

	minCache := newChunkCache(e.params, e.db, minFactory, vci)
	maxCache := newChunkCache(e.params, e.db, maxFactory, vci)

	// Two full passes over the group: every attestation goes through the MIN
	// array before any goes through the MAX array.
	passes := []struct {
		cache *chunkCache
		kind  slashingArrayKind
	}{{minCache, minKind}, {maxCache, maxKind}}
	for _, pass := range passes {
		for _, idx := range sourceChunkIndices {
			for _, att := range bySourceChunk[idx] {
				for _, v := range attestingValidatorsForChunk(att, e.params, vci) {
					found, err := e.checkAndUpdate(ctx, pass.cache, pass.kind, v, att, currentEpoch)
					if err != nil {
						return nil, err
					}
					slashings = append(slashings, found...)
				}
			}
		}
	}

	if err := minCache.flush(ctx); err != nil {
		return nil, err
	}
	if err := maxCache.flush(ctx); err != nil {
		return nil, err
	}

	validatorIndices := make([]types.ValidatorIndex, 0, len(atts))
	records := make([]*CompactAttestation, 0, len(atts))
	for _, att := range atts {
		for _, v := range attestingValidatorsForChunk(att, e.params, vci) {
			validatorIndices = append(validatorIndices, v)
			records = append(records, att)
		}
	}
	if len(validatorIndices) > 0 {
		if err := e.db.SaveAttestationRecordsForValidators(ctx, validatorIndices, records); err != nil {
			return nil, errors.Wrap(ErrStoreError, err.Error())
		}
	}

	return slashings, nil
}

// doubleVoteKey identifies the first-writer-wins slot a double-vote check
// compares against: one per (validator, target epoch).
type doubleVoteKey struct {
	validator uint64
	target    uint64
}

// checkDoubleVote compares att against whichever record already holds the
// (v, att.Target) slot — one seen earlier in this same batch, or else one
// already persisted from a previous batch — and reports a differing signing
// root as a double vote. seenRecords is shared across every attestation in
// the validator chunk's batch so that two conflicting attestations for the
// same key submitted within one batch are caught without either having
// reached the store yet; whichever record is first encountered for a key,
// in-batch or on disk, stays on record for the rest of the batch.
func (e *Engine) checkDoubleVote(
	ctx context.Context, seenRecords map[doubleVoteKey]*CompactAttestation, v types.ValidatorIndex, att *CompactAttestation,
) (*AttesterSlashing, error) {
	key := doubleVoteKey{validator: uint64(v), target: att.Target}
	existing, ok := seenRecords[key]
	if !ok {
		stored, err := e.db.AttestationRecordForValidator(ctx, v, types.Epoch(att.Target))
		if err != nil {
			return nil, errors.Wrap(ErrStoreError, err.Error())
		}
		existing = stored
	}
	if existing == nil {
		seenRecords[key] = att
		return nil, nil
	}
	if !ok {
		seenRecords[key] = existing
	}
	if existing.SigningRoot == att.SigningRoot {
		return nil, nil
	}
	slashingsDetectedTotal.WithLabelValues(DoubleVote.String()).Inc()
	return &AttesterSlashing{Kind: DoubleVote, ValidatorIndex: uint64(v), Existing: existing, New: att}, nil
}

// checkAndUpdate runs the slashable check for one (cache-kind, validator,
// attestation) triple. A surround is reported as evidence and the update
// walk is skipped entirely; otherwise the walk runs and may span multiple
// chunks.
func (e *Engine) checkAndUpdate(
	ctx context.Context, cache *chunkCache, kind slashingArrayKind, v types.ValidatorIndex, att *CompactAttestation, currentEpoch types.Epoch,
) ([]*AttesterSlashing, error) {
	source := types.Epoch(att.Source)
	sourceChunkIdx := e.params.chunkIndex(source)
	chunk, err := cache.get(ctx, sourceChunkIdx)
	if err != nil {
		return nil, err
	}

	status, err := chunk.CheckSlashable(ctx, e.db, v, att)
	if err != nil {
		return nil, err
	}
	if status != NotSlashable {
		target, err := chunkDataAtEpoch(e.params, chunk.Chunk(), v, source)
		if err != nil {
			return nil, err
		}
		existing, err := e.db.AttestationRecordForValidator(ctx, v, target)
		if err != nil {
			return nil, errors.Wrap(ErrStoreError, err.Error())
		}
		if existing == nil {
			return nil, errors.Wrapf(ErrMissingAttesterRecord, "validator %d, target epoch %d", v, target)
		}
		slashingsDetectedTotal.WithLabelValues(status.String()).Inc()
		return []*AttesterSlashing{{Kind: status, ValidatorIndex: uint64(v), Existing: existing, New: att}}, nil
	}

	startEpoch, ok := firstStartEpoch(kind, source, currentEpoch)
	for ok {
		chunkIdx := e.params.chunkIndex(startEpoch)
		c, err := cache.get(ctx, chunkIdx)
		if err != nil {
			return nil, err
		}
		keepGoing, err := c.Update(chunkIdx, v, startEpoch, currentEpoch, types.Epoch(att.Target))
		if err != nil {
			return nil, err
		}
		cache.markDirty(chunkIdx)
		if !keepGoing {
			break
		}
		_, nextStart := nextChunkBoundary(kind, e.params, startEpoch)
		startEpoch = nextStart
	}
	return nil, nil
}

// groupByValidatorChunkIndex buckets attestations by every validator chunk
// index any of their attesting indices fall into, preserving each bucket's
// insertion order.
func groupByValidatorChunkIndex(params *Parameters, attestations []*CompactAttestation) map[uint64][]*CompactAttestation {
	grouped := make(map[uint64][]*CompactAttestation)
	for _, att := range attestations {
		seen := make(map[uint64]bool)
		for _, idx := range att.AttestingIndices {
			vci := params.validatorChunkIndex(types.ValidatorIndex(idx))
			if !seen[vci] {
				seen[vci] = true
				grouped[vci] = append(grouped[vci], att)
			}
		}
	}
	return grouped
}

// groupByChunkIndex buckets attestations by chunk_index(source), so a
// validator chunk's updates proceed in disk order.
func groupByChunkIndex(params *Parameters, attestations []*CompactAttestation) map[uint64][]*CompactAttestation {
	grouped := make(map[uint64][]*CompactAttestation)
	for _, att := range attestations {
		idx := params.chunkIndex(types.Epoch(att.Source))
		grouped[idx] = append(grouped[idx], att)
	}
	return grouped
}

// dedupeSlashings collapses duplicate reports of the same offense. Two
// passes cannot legitimately report the same (validator, existing target,
// new target) triple, but the orchestrator still guards against it.
func dedupeSlashings(slashings []*AttesterSlashing) []*AttesterSlashing {
	type key struct {
		validator uint64
		existing  uint64
		new       uint64
	}
	seen := make(map[key]bool, len(slashings))
	out := make([]*AttesterSlashing, 0, len(slashings))
	for _, s := range slashings {
		k := key{validator: s.ValidatorIndex, existing: s.Existing.Target, new: s.New.Target}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
