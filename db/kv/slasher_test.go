package kv

import (
	"context"
	"testing"

	types "github.com/prysmaticlabs/eth2-types"

	"github.com/dualcheck/surveil/internal/testutil/require"
	slashertypes "github.com/dualcheck/surveil/slasher/types"
)

func setupDB(t *testing.T) *Store {
	db, err := NewKVStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestStore_SlasherChunks_SaveLoadRoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	key := diskKeyForTest(1, 2)
	chunk := []uint16{1, 2, 3, 4, 65535, 0}

	chunks, exists, err := db.LoadSlasherChunks(ctx, slashertypes.MinSpan, [][]byte{key})
	require.NoError(t, err)
	require.Equal(t, 1, len(chunks))
	require.Equal(t, false, exists[0])

	require.NoError(t, db.SaveSlasherChunks(ctx, slashertypes.MinSpan, [][]byte{key}, [][]uint16{chunk}))

	chunks, exists, err = db.LoadSlasherChunks(ctx, slashertypes.MinSpan, [][]byte{key})
	require.NoError(t, err)
	require.Equal(t, true, exists[0])
	require.DeepEqual(t, chunk, chunks[0])

	// A max-span lookup at the same key must not see the min-span write:
	// the two kinds live in separate buckets.
	chunks, exists, err = db.LoadSlasherChunks(ctx, slashertypes.MaxSpan, [][]byte{key})
	require.NoError(t, err)
	require.Equal(t, false, exists[0])
}

func TestStore_AttestationRecords_FirstWriterWins(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	validatorIdx := types.ValidatorIndex(7)
	targetEpoch := types.Epoch(3)

	record, err := db.AttestationRecordForValidator(ctx, validatorIdx, targetEpoch)
	require.NoError(t, err)
	if record != nil {
		t.Fatalf("expected no record before any save, got %+v", record)
	}

	first := &slashertypes.CompactAttestation{
		AttestingIndices: []uint64{uint64(validatorIdx)},
		Source:           1,
		Target:           uint64(targetEpoch),
		SigningRoot:      [32]byte{1},
	}
	err = db.SaveAttestationRecordsForValidators(
		ctx, []types.ValidatorIndex{validatorIdx}, []*slashertypes.CompactAttestation{first},
	)
	require.NoError(t, err)

	second := &slashertypes.CompactAttestation{
		AttestingIndices: []uint64{uint64(validatorIdx)},
		Source:           2,
		Target:           uint64(targetEpoch),
		SigningRoot:      [32]byte{2},
	}
	err = db.SaveAttestationRecordsForValidators(
		ctx, []types.ValidatorIndex{validatorIdx}, []*slashertypes.CompactAttestation{second},
	)
	require.NoError(t, err)

	record, err = db.AttestationRecordForValidator(ctx, validatorIdx, targetEpoch)
	require.NoError(t, err)
	require.Equal(t, [32]byte{1}, record.SigningRoot)
	require.Equal(t, uint64(1), record.Source)
}

func diskKeyForTest(validatorChunkIndex, chunkIndex uint64) []byte {
	key := make([]byte, 16)
	for i := 0; i < 8; i++ {
		key[7-i] = byte(validatorChunkIndex >> (8 * i))
		key[15-i] = byte(chunkIndex >> (8 * i))
	}
	return key
}
