package slasher

import (
	"context"
	"testing"
	"time"

	dbtest "github.com/dualcheck/surveil/db/kv/testing"
	"github.com/dualcheck/surveil/internal/testutil/require"
)

func TestService_ReceiveAttestations_QueuesUntilDrained(t *testing.T) {
	beaconDB := dbtest.SetupDB(t)
	params, err := NewParams(4, 2, 2)
	require.NoError(t, err)

	svc := New(context.Background(), &ServiceConfig{
		Params:          params,
		Database:        beaconDB,
		GenesisTime:     time.Now(),
		SecondsPerEpoch: 1,
	})
	require.Equal(t, 0, len(svc.queue))

	att := &CompactAttestation{AttestingIndices: []uint64{0}, Source: 0, Target: 1}
	svc.ReceiveAttestations(att)
	require.Equal(t, 1, len(svc.queue))

	svc.ReceiveAttestations(att, att)
	require.Equal(t, 3, len(svc.queue))

	require.NoError(t, svc.Status())
}

func TestService_StartStop(t *testing.T) {
	beaconDB := dbtest.SetupDB(t)
	params, err := NewParams(4, 2, 2)
	require.NoError(t, err)

	svc := New(context.Background(), &ServiceConfig{
		Params:          params,
		Database:        beaconDB,
		GenesisTime:     time.Now().Add(-time.Hour),
		SecondsPerEpoch: 1,
	})
	svc.Start()
	require.NoError(t, svc.Stop())
}
