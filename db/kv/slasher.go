package kv

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/boltdb/bolt"
	ssz "github.com/ferranbt/fastssz"
	"github.com/golang/snappy"
	types "github.com/prysmaticlabs/eth2-types"
	"go.opencensus.io/trace"

	slashertypes "github.com/dualcheck/surveil/slasher/types"
)

const chunkEncodingVersion byte = 1

var _ slashertypes.Database = (*Store)(nil)

// LoadSlasherChunks returns one decoded chunk per disk key, in the same
// order, alongside a parallel exists slice distinguishing a freshly
// allocated chunk (no record on disk yet) from a stored one.
func (s *Store) LoadSlasherChunks(
	ctx context.Context, kind slashertypes.ChunkKind, diskKeys [][]byte,
) ([][]uint16, []bool, error) {
	ctx, span := trace.StartSpan(ctx, "kv.LoadSlasherChunks")
	defer span.End()

	bucket := bucketForKind(kind)
	chunks := make([][]uint16, 0, len(diskKeys))
	exists := make([]bool, 0, len(diskKeys))
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		for _, key := range diskKeys {
			raw := bkt.Get(key)
			if raw == nil {
				chunks = append(chunks, []uint16{})
				exists = append(exists, false)
				continue
			}
			chunk, err := decodeSlasherChunk(raw)
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
			exists = append(exists, true)
		}
		return nil
	})
	return chunks, exists, err
}

// SaveSlasherChunks persists chunkKeys[i] -> chunks[i] for every i, inside
// a single write transaction.
func (s *Store) SaveSlasherChunks(
	ctx context.Context, kind slashertypes.ChunkKind, chunkKeys [][]byte, chunks [][]uint16,
) error {
	ctx, span := trace.StartSpan(ctx, "kv.SaveSlasherChunks")
	defer span.End()

	bucket := bucketForKind(kind)
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucket)
		for i := range chunkKeys {
			if err := bkt.Put(chunkKeys[i], encodeSlasherChunk(chunks[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

// AttestationRecordForValidator returns the first attestation ever observed
// for (validatorIdx, targetEpoch), or nil if no record was stored.
func (s *Store) AttestationRecordForValidator(
	ctx context.Context, validatorIdx types.ValidatorIndex, targetEpoch types.Epoch,
) (*slashertypes.CompactAttestation, error) {
	ctx, span := trace.StartSpan(ctx, "kv.AttestationRecordForValidator")
	defer span.End()

	var record *slashertypes.CompactAttestation
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(attesterRecordsBucket)
		value := bkt.Get(attesterRecordKey(validatorIdx, targetEpoch))
		if value == nil {
			return nil
		}
		decoded, err := decodeAttestationRecord(value)
		if err != nil {
			return err
		}
		record = decoded
		return nil
	})
	return record, err
}

// SaveAttestationRecordsForValidators writes a first-writer-wins record for
// each (validatorIndices[i], atts[i].Target) pair; a key that already
// exists in the bucket is left untouched.
func (s *Store) SaveAttestationRecordsForValidators(
	ctx context.Context, validatorIndices []types.ValidatorIndex, atts []*slashertypes.CompactAttestation,
) error {
	ctx, span := trace.StartSpan(ctx, "kv.SaveAttestationRecordsForValidators")
	defer span.End()

	if len(validatorIndices) != len(atts) {
		return fmt.Errorf("mismatched validator/attestation slice lengths: %d vs %d", len(validatorIndices), len(atts))
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(attesterRecordsBucket)
		for i, v := range validatorIndices {
			key := attesterRecordKey(v, types.Epoch(atts[i].Target))
			if bkt.Get(key) != nil {
				continue
			}
			value, err := encodeAttestationRecord(atts[i])
			if err != nil {
				return err
			}
			if err := bkt.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func bucketForKind(kind slashertypes.ChunkKind) []byte {
	if kind == slashertypes.MaxSpan {
		return maxTargetChunksBucket
	}
	return minTargetChunksBucket
}

func attesterRecordKey(validatorIdx types.ValidatorIndex, targetEpoch types.Epoch) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], uint64(validatorIdx))
	binary.BigEndian.PutUint64(key[8:16], uint64(targetEpoch))
	return key
}

// encodeSlasherChunk serializes a cell array as a version byte followed by
// the cells themselves (via fastssz's primitive marshallers), then
// snappy-compresses the result.
func encodeSlasherChunk(chunk []uint16) []byte {
	val := make([]byte, 0, 1+2*len(chunk))
	val = append(val, chunkEncodingVersion)
	for _, v := range chunk {
		val = ssz.MarshalUint16(val, v)
	}
	return snappy.Encode(nil, val)
}

func decodeSlasherChunk(enc []byte) ([]uint16, error) {
	raw, err := snappy.Decode(nil, enc)
	if err != nil {
		return nil, err
	}
	if len(raw) < 1 || (len(raw)-1)%2 != 0 {
		return nil, fmt.Errorf("corrupt chunk encoding: length %d", len(raw))
	}
	if raw[0] != chunkEncodingVersion {
		return nil, fmt.Errorf("unknown chunk encoding version %d", raw[0])
	}
	body := raw[1:]
	chunk := make([]uint16, 0, len(body)/2)
	for i := 0; i < len(body); i += 2 {
		chunk = append(chunk, ssz.UnmarshallUint16(body[i:i+2]))
	}
	return chunk, nil
}

// encodeAttestationRecord frames a compact attestation as: 32-byte signing
// root, 8-byte source, 8-byte target, 4-byte attesting-index count, then
// that many 8-byte attesting indices.
func encodeAttestationRecord(att *slashertypes.CompactAttestation) ([]byte, error) {
	out := make([]byte, 0, 32+8+8+4+8*len(att.AttestingIndices))
	out = append(out, att.SigningRoot[:]...)
	out = ssz.MarshalUint64(out, att.Source)
	out = ssz.MarshalUint64(out, att.Target)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(att.AttestingIndices)))
	out = append(out, countBuf[:]...)
	for _, idx := range att.AttestingIndices {
		out = ssz.MarshalUint64(out, idx)
	}
	return out, nil
}

func decodeAttestationRecord(encoded []byte) (*slashertypes.CompactAttestation, error) {
	if len(encoded) < 32+8+8+4 {
		return nil, fmt.Errorf("wrong length for encoded attestation record, got %d", len(encoded))
	}
	var signingRoot [32]byte
	copy(signingRoot[:], encoded[:32])
	source := ssz.UnmarshallUint64(encoded[32:40])
	target := ssz.UnmarshallUint64(encoded[40:48])
	count := binary.BigEndian.Uint32(encoded[48:52])
	offset := 52
	indices := make([]uint64, 0, count)
	for i := uint32(0); i < count; i++ {
		if offset+8 > len(encoded) {
			return nil, fmt.Errorf("truncated attesting index list in attestation record")
		}
		indices = append(indices, ssz.UnmarshallUint64(encoded[offset:offset+8]))
		offset += 8
	}
	return &slashertypes.CompactAttestation{
		AttestingIndices: indices,
		Source:           source,
		Target:           target,
		SigningRoot:      signingRoot,
	}, nil
}
