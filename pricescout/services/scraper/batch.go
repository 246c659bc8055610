package scraper

import (
	"math"
	"time"

	"pricescout/pricescout/utils/types"
)

// DefaultChunkSize is the number of products scraped concurrently per batch.
const DefaultChunkSize = 10

// DefaultSecondsPerBatch is the advisory wall time of one batch.
const DefaultSecondsPerBatch = 9 * time.Second

// Partition splits names into consecutive batches of at most chunkSize,
// keeping input order. chunkSize <= 0 means DefaultChunkSize.
func Partition(names []string, chunkSize int) []types.Batch {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	batches := make([]types.Batch, 0, BatchCount(len(names), chunkSize))
	for offset := 0; offset < len(names); offset += chunkSize {
		end := min(offset+chunkSize, len(names))
		queries := make([]types.ProductQuery, 0, end-offset)
		for _, name := range names[offset:end] {
			queries = append(queries, types.ProductQuery{Name: name})
		}
		batches = append(batches, types.Batch{
			Index:   len(batches),
			Offset:  offset,
			Queries: queries,
		})
	}
	return batches
}

func BatchCount(n, chunkSize int) int {
	if n <= 0 {
		return 0
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return (n + chunkSize - 1) / chunkSize
}

// EstimateDuration is the advisory run time shown to users, rounded up to
// whole seconds. It never bounds the actual run.
func EstimateDuration(batches int, perBatch time.Duration) time.Duration {
	if batches <= 0 {
		return 0
	}
	if perBatch <= 0 {
		perBatch = DefaultSecondsPerBatch
	}
	secs := math.Ceil(float64(batches) * perBatch.Seconds())
	return time.Duration(secs) * time.Second
}
