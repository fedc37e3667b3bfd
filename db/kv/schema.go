package kv

// Buckets for slasher's persistent state. Four logical tables: the two
// chunked span arrays, the attester record store, and an optional
// last-epoch-written cursor used only as an external fast-path hint.
var (
	minTargetChunksBucket  = []byte("min_targets")
	maxTargetChunksBucket  = []byte("max_targets")
	attesterRecordsBucket  = []byte("attester_records")
	lastEpochWrittenBucket = []byte("last_epoch_written")
)
