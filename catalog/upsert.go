package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhaberkorn/sparfuchs/vecstore"
)

// ErrPartialIngestion is returned when reconciliation aborts before writing
// all chunks. Already-committed chunks, if any, are not rolled back.
var ErrPartialIngestion = errors.New("catalog: partial ingestion")

// ingestionErr wraps a chunk failure, distinguishing an abort with nothing
// committed from one that left earlier chunks behind.
func ingestionErr(committed, offset int, err error) error {
	if committed == 0 {
		return fmt.Errorf("%w: nothing committed, first chunk at offset %d: %w",
			ErrPartialIngestion, offset, err)
	}
	return fmt.Errorf("%w: %d points committed, chunk at offset %d: %w",
		ErrPartialIngestion, committed, offset, err)
}

// upsertChunks writes points sequentially in chunks. A timeout on a chunk
// above the floor size halves the chunk size and retries the same offset
// once; a second failure, a timeout at the floor, or any non-timeout error
// aborts the remaining chunks. Returns the number of points committed.
//
// Chunks are never submitted concurrently: the retry policy for a chunk
// depends on the outcome of the previous attempt.
func (e *Engine) upsertChunks(ctx context.Context, points []vecstore.Point) (int, error) {
	size := e.cfg.ChunkSize
	committed := 0
	for offset := 0; offset < len(points); {
		end := min(offset+size, len(points))
		chunk := points[offset:end]

		err := e.store.Upsert(ctx, e.cfg.Collection, chunk)
		if err == nil {
			committed += len(chunk)
			offset = end
			continue
		}

		if vecstore.IsTimeout(err) && size > e.cfg.ChunkFloor {
			// Re-slice from the same offset at half the size and retry once.
			// The reduced size sticks for the remaining chunks.
			size = max(e.cfg.ChunkFloor, size/2)
			end = min(offset+size, len(points))
			chunk = points[offset:end]
			e.logger.Warn("upsert timeout, retrying smaller chunk",
				"offset", offset, "chunk_size", size)

			if retryErr := e.store.Upsert(ctx, e.cfg.Collection, chunk); retryErr != nil {
				return committed, ingestionErr(committed, offset, fmt.Errorf("after retry: %w", retryErr))
			}
			committed += len(chunk)
			offset = end
			continue
		}

		return committed, ingestionErr(committed, offset, err)
	}
	return committed, nil
}
