package slasher

import "github.com/pkg/errors"

// Sentinel errors for the failure modes the engine and store can hit. Call
// sites wrap these with errors.Wrap to attach causal detail; callers check
// kind with errors.Is.
var (
	// ErrConfigInvalid signals a non-divisible H/C, a zero-valued size, or
	// H >= the distance sentinel. Fatal at construction time.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrDistanceTooLarge signals an arithmetic distance that would equal or
	// exceed the 16-bit sentinel.
	ErrDistanceTooLarge = errors.New("distance too large to store in 16 bits")

	// ErrDistanceCalculationOverflow signals 64-bit epoch arithmetic overflow.
	ErrDistanceCalculationOverflow = errors.New("distance calculation overflowed")

	// ErrChunkIndexOutOfBounds signals a cell lookup outside this chunk's tile.
	ErrChunkIndexOutOfBounds = errors.New("chunk index out of bounds")

	// ErrCorruptChunk signals a stored chunk whose decoded cell count does not
	// match this configuration's C*K. Failures inside the store's own decoding
	// (bad compression, bad version tag) surface wrapped in ErrStoreError.
	ErrCorruptChunk = errors.New("corrupt chunk encoding")

	// ErrMissingAttesterRecord signals that the engine needed the
	// first-observed attestation at (v, target) to build slashing evidence
	// and the store had none on record.
	ErrMissingAttesterRecord = errors.New("missing attester record")

	// ErrStoreError wraps underlying persistence-layer failures.
	ErrStoreError = errors.New("store error")
)
