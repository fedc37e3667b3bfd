package slasher

import slashertypes "github.com/dualcheck/surveil/slasher/types"

// CompactAttestation is the attestation shape this package operates on:
// just enough to run the array engine, with signature verification and
// network deserialization left to the caller. Aliased here so the rest of
// this package can refer to it without qualifying every use.
type CompactAttestation = slashertypes.CompactAttestation

// Chunker-facing aliases for the slashing-status taxonomy.
const (
	NotSlashable    = slashertypes.NotSlashable
	DoubleVote      = slashertypes.DoubleVote
	SurroundingVote = slashertypes.SurroundingVote
	SurroundedVote  = slashertypes.SurroundedVote
)

// SlashingKind re-exported for convenience.
type SlashingKind = slashertypes.SlashingKind

// AttesterSlashing re-exported for convenience.
type AttesterSlashing = slashertypes.AttesterSlashing

// AttesterDoubleVote re-exported for convenience.
type AttesterDoubleVote = slashertypes.AttesterDoubleVote
