package scheduler

import (
	"context"
	"strconv"

	"github.com/barreleye-go/indexer/internal/models"
)

// computeProgress implements SPEC_FULL §4.1's progress score: the tail's
// fraction of BlockHeight done, averaged with each not-yet-synced module's
// own fraction, mirroring original_source/indexer/src/indexer.rs's score
// averaging.
func (c *Coordinator) computeProgress(ctx context.Context, nid models.PrimaryId) (float64, error) {
	blockHeight, err := c.getHeight(ctx, models.KeyBlockHeight(nid))
	if err != nil {
		return 0, err
	}
	if blockHeight == 0 {
		return 0, nil
	}

	tailBlock, err := c.getHeight(ctx, models.KeyIndexerTailSync(nid))
	if err != nil {
		return 0, err
	}

	doneBlocks := int64(tailBlock)
	chunkRows, err := c.store.GetManyByPrefix(ctx, models.ChunkSyncPrefix(nid))
	if err != nil {
		return 0, err
	}
	for _, row := range chunkRows {
		min, max, ok := decodeRange(row.Value)
		if !ok {
			continue
		}
		doneBlocks -= int64(max - min)
	}

	scores := []float64{float64(doneBlocks) / float64(blockHeight)}

	// NOTE: module ids aren't known here without a network adapter handle;
	// the caller (commit) only has what config already tracks, so this
	// walks every module-sync marker under the network's namespace instead
	// of asking the adapter.
	moduleRanges, err := c.store.GetManyByPrefix(ctx, models.ModuleSyncPrefix(nid))
	if err != nil {
		return 0, err
	}
	for _, row := range moduleRanges {
		min, max, ok := decodeRange(row.Value)
		if !ok || max <= min {
			continue
		}
		indexed := doneBlocks - int64(max-min)
		scores = append(scores, float64(indexed)/float64(blockHeight))
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), nil
}

func formatProgress(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
