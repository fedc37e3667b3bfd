package types

import (
	"context"

	eth2types "github.com/prysmaticlabs/eth2-types"
)

// Database is the store capability set the detection engine consumes. It is
// satisfied by db/kv.Store; the engine never talks to boltdb directly. Kept
// in this package, rather than in the engine's own package, so the concrete
// store implementation can depend on the interface without importing back
// into the engine package.
type Database interface {
	// LoadSlasherChunks returns one chunk slice per disk key, in the same
	// order, along with a parallel "did this chunk already exist" slice so
	// callers can distinguish a freshly-allocated chunk from a stored one.
	LoadSlasherChunks(ctx context.Context, kind ChunkKind, diskKeys [][]byte) ([][]uint16, []bool, error)

	// SaveSlasherChunks persists chunkKeys[i] -> chunks[i] for every i.
	SaveSlasherChunks(ctx context.Context, kind ChunkKind, chunkKeys [][]byte, chunks [][]uint16) error

	// AttestationRecordForValidator returns the first attestation ever
	// observed for (validatorIdx, targetEpoch), or nil if none was recorded.
	AttestationRecordForValidator(ctx context.Context, validatorIdx eth2types.ValidatorIndex, targetEpoch eth2types.Epoch) (*CompactAttestation, error)

	// SaveAttestationRecordsForValidators writes a first-writer-wins record
	// for each (validatorIndices[i], atts[i].Target) pair; the two slices are
	// parallel. A key that already exists is left untouched.
	SaveAttestationRecordsForValidators(ctx context.Context, validatorIndices []eth2types.ValidatorIndex, atts []*CompactAttestation) error
}

// ChunkKind to differentiate what kind of span we are working
// with for slashing detection, either min or max span.
type ChunkKind uint

const (
	MinSpan ChunkKind = iota
	MaxSpan
)

// CompactAttestation containing only the required information
// for attester slashing detection.
type CompactAttestation struct {
	AttestingIndices []uint64
	Source           uint64
	Target           uint64
	SigningRoot      [32]byte
}

// SlashingKind is an enum representing the type of slashable
// offense detected by slasher, useful for conditionals or for logging.
type SlashingKind int

const (
	NotSlashable SlashingKind = iota
	DoubleVote
	SurroundingVote
	SurroundedVote
)

func (k SlashingKind) String() string {
	switch k {
	case NotSlashable:
		return "NOT_SLASHABLE"
	case DoubleVote:
		return "DOUBLE_VOTE"
	case SurroundingVote:
		return "SURROUNDING_VOTE"
	case SurroundedVote:
		return "SURROUNDED_VOTE"
	default:
		return "UNKNOWN"
	}
}

// AttesterSlashing pairs the existing, previously-seen attestation with the
// new one that conflicts with it, alongside the offense that was detected.
type AttesterSlashing struct {
	Kind           SlashingKind
	ValidatorIndex uint64
	Existing       *CompactAttestation
	New            *CompactAttestation
}

// AttesterDoubleVote flags two attestations sharing a validator and target
// epoch but disagreeing on their signing root.
type AttesterDoubleVote struct {
	ValidatorIndex  uint64
	Target          uint64
	SigningRoot     [32]byte
	PrevSigningRoot [32]byte
}
