package slasher

import (
	"context"
	"testing"

	types "github.com/prysmaticlabs/eth2-types"

	dbtest "github.com/dualcheck/surveil/db/kv/testing"
	"github.com/dualcheck/surveil/internal/testutil/require"
)

func TestEngine_ProcessBatch_DoubleVote(t *testing.T) {
	ctx := context.Background()
	beaconDB := dbtest.SetupDB(t)
	params, err := NewParams(4, 2, 2)
	require.NoError(t, err)
	engine := NewEngine(params, beaconDB)

	first := &CompactAttestation{
		AttestingIndices: []uint64{0},
		Source:           0,
		Target:           1,
		SigningRoot:      [32]byte{1},
	}
	slashings, err := engine.ProcessBatch(ctx, []*CompactAttestation{first}, types.Epoch(1))
	require.NoError(t, err)
	require.Equal(t, 0, len(slashings))

	conflicting := &CompactAttestation{
		AttestingIndices: []uint64{0},
		Source:           0,
		Target:           1,
		SigningRoot:      [32]byte{2},
	}
	slashings, err = engine.ProcessBatch(ctx, []*CompactAttestation{conflicting}, types.Epoch(1))
	require.NoError(t, err)
	require.Equal(t, 1, len(slashings))
	require.Equal(t, DoubleVote, slashings[0].Kind)
	require.Equal(t, uint64(0), slashings[0].ValidatorIndex)
}

func TestEngine_ProcessBatch_DoubleVote_SameBatch(t *testing.T) {
	ctx := context.Background()
	beaconDB := dbtest.SetupDB(t)
	params, err := NewParams(4, 2, 2)
	require.NoError(t, err)
	engine := NewEngine(params, beaconDB)

	first := &CompactAttestation{
		AttestingIndices: []uint64{0},
		Source:           0,
		Target:           1,
		SigningRoot:      [32]byte{1},
	}
	conflicting := &CompactAttestation{
		AttestingIndices: []uint64{0},
		Source:           0,
		Target:           1,
		SigningRoot:      [32]byte{2},
	}
	// Both attestations arrive in the same batch: neither has been
	// persisted yet when the other is checked, so the conflict can only
	// be caught by comparing against what was already seen earlier in
	// this same batch.
	slashings, err := engine.ProcessBatch(ctx, []*CompactAttestation{first, conflicting}, types.Epoch(1))
	require.NoError(t, err)
	require.Equal(t, 1, len(slashings))
	require.Equal(t, DoubleVote, slashings[0].Kind)
	require.Equal(t, uint64(0), slashings[0].ValidatorIndex)
	require.Equal(t, [32]byte{1}, slashings[0].Existing.SigningRoot)
	require.Equal(t, [32]byte{2}, slashings[0].New.SigningRoot)
}

func TestEngine_ProcessBatch_SurroundingVote(t *testing.T) {
	ctx := context.Background()
	beaconDB := dbtest.SetupDB(t)
	params, err := NewParams(4, 2, 2)
	require.NoError(t, err)
	engine := NewEngine(params, beaconDB)

	surrounded := &CompactAttestation{
		AttestingIndices: []uint64{0},
		Source:           1,
		Target:           2,
		SigningRoot:      [32]byte{1},
	}
	slashings, err := engine.ProcessBatch(ctx, []*CompactAttestation{surrounded}, types.Epoch(2))
	require.NoError(t, err)
	require.Equal(t, 0, len(slashings))

	surrounding := &CompactAttestation{
		AttestingIndices: []uint64{0},
		Source:           0,
		Target:           3,
		SigningRoot:      [32]byte{2},
	}
	slashings, err = engine.ProcessBatch(ctx, []*CompactAttestation{surrounding}, types.Epoch(3))
	require.NoError(t, err)
	require.Equal(t, 1, len(slashings))
	require.Equal(t, SurroundingVote, slashings[0].Kind)
	require.Equal(t, uint64(2), slashings[0].Existing.Target)
	require.Equal(t, uint64(3), slashings[0].New.Target)
}

func TestEngine_ProcessBatch_DropsBelowWindowFloor(t *testing.T) {
	ctx := context.Background()
	beaconDB := dbtest.SetupDB(t)
	params, err := NewParams(4, 2, 2)
	require.NoError(t, err)
	engine := NewEngine(params, beaconDB)

	stale := &CompactAttestation{
		AttestingIndices: []uint64{0},
		Source:           0,
		Target:           1,
		SigningRoot:      [32]byte{1},
	}
	// windowFloor(currentEpoch=10) = 10 + 1 - 4 = 7, so source 0 is dropped
	// before it ever reaches the double-vote check or either array pass.
	slashings, err := engine.ProcessBatch(ctx, []*CompactAttestation{stale}, types.Epoch(10))
	require.NoError(t, err)
	require.Equal(t, 0, len(slashings))

	record, err := beaconDB.AttestationRecordForValidator(ctx, types.ValidatorIndex(0), types.Epoch(1))
	require.NoError(t, err)
	if record != nil {
		t.Fatalf("expected no attestation record for a dropped attestation, got %+v", record)
	}
}

func TestEngine_ProcessBatch_MultipleValidatorChunks(t *testing.T) {
	ctx := context.Background()
	beaconDB := dbtest.SetupDB(t)
	params, err := NewParams(4, 2, 2)
	require.NoError(t, err)
	engine := NewEngine(params, beaconDB)

	// Validators 0 and 1 share validator chunk 0; validator 2 falls into
	// validator chunk 1 and should be processed independently.
	att := &CompactAttestation{
		AttestingIndices: []uint64{0, 1, 2},
		Source:           0,
		Target:           1,
		SigningRoot:      [32]byte{1},
	}
	slashings, err := engine.ProcessBatch(ctx, []*CompactAttestation{att}, types.Epoch(1))
	require.NoError(t, err)
	require.Equal(t, 0, len(slashings))

	for _, v := range []types.ValidatorIndex{0, 1, 2} {
		record, err := beaconDB.AttestationRecordForValidator(ctx, v, types.Epoch(1))
		require.NoError(t, err)
		require.Equal(t, [32]byte{1}, record.SigningRoot)
	}
}
