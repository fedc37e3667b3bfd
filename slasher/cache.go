package slasher

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	slashertypes "github.com/dualcheck/surveil/slasher/types"
)

// chunkFactory supplies the two constructors that differ between the MIN
// and MAX array kinds; everything else about driving a chunk cache is
// shared between them.
type chunkFactory struct {
	kind  slashertypes.ChunkKind
	empty func(*Parameters) Chunker
	from  func(*Parameters, []uint16) (Chunker, error)
}

var minFactory = chunkFactory{
	kind:  slashertypes.MinSpan,
	empty: func(p *Parameters) Chunker { return EmptyMinSpanChunksSlice(p) },
	from:  func(p *Parameters, d []uint16) (Chunker, error) { return MinChunkSpansSliceFrom(p, d) },
}

var maxFactory = chunkFactory{
	kind:  slashertypes.MaxSpan,
	empty: func(p *Parameters) Chunker { return EmptyMaxSpanChunksSlice(p) },
	from:  func(p *Parameters, d []uint16) (Chunker, error) { return MaxChunkSpansSliceFrom(p, d) },
}

// chunkCache is a per-batch write-through cache over one array kind's
// chunks for a single validator chunk index. Misses fall through to the
// store; entries touched by Update are flushed together at the end of the
// validator-chunk's processing in ascending chunk-index order.
type chunkCache struct {
	params  *Parameters
	db      Database
	factory chunkFactory
	vci     uint64
	chunks  map[uint64]Chunker
	dirty   map[uint64]bool
}

func newChunkCache(params *Parameters, db Database, factory chunkFactory, vci uint64) *chunkCache {
	return &chunkCache{
		params:  params,
		db:      db,
		factory: factory,
		vci:     vci,
		chunks:  make(map[uint64]Chunker),
		dirty:   make(map[uint64]bool),
	}
}

func (c *chunkCache) get(ctx context.Context, chunkIdx uint64) (Chunker, error) {
	if chunk, ok := c.chunks[chunkIdx]; ok {
		return chunk, nil
	}
	key := diskKey(c.vci, chunkIdx)
	datas, exists, err := c.db.LoadSlasherChunks(ctx, c.factory.kind, [][]byte{key})
	if err != nil {
		return nil, errors.Wrap(ErrStoreError, err.Error())
	}
	if len(datas) != 1 || len(exists) != 1 {
		return nil, errors.New("store returned wrong number of chunks for disk key lookup")
	}
	var chunk Chunker
	if exists[0] {
		chunk, err = c.factory.from(c.params, datas[0])
		if err != nil {
			return nil, errors.Wrap(ErrCorruptChunk, err.Error())
		}
	} else {
		chunk = c.factory.empty(c.params)
	}
	c.chunks[chunkIdx] = chunk
	return chunk, nil
}

func (c *chunkCache) markDirty(chunkIdx uint64) {
	c.dirty[chunkIdx] = true
}

// flush persists every dirty chunk in ascending chunk-index order, so the
// resulting store writes follow a stable, reproducible trace.
func (c *chunkCache) flush(ctx context.Context) error {
	if len(c.dirty) == 0 {
		return nil
	}
	indices := make([]uint64, 0, len(c.dirty))
	for idx := range c.dirty {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	keys := make([][]byte, len(indices))
	chunks := make([][]uint16, len(indices))
	for i, idx := range indices {
		keys[i] = diskKey(c.vci, idx)
		chunks[i] = c.chunks[idx].Chunk()
	}
	if err := c.db.SaveSlasherChunks(ctx, c.factory.kind, keys, chunks); err != nil {
		return errors.Wrap(ErrStoreError, err.Error())
	}
	return nil
}
