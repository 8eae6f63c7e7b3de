package scheduler

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/warehouse"
)

// commit implements SPEC_FULL §4.1's commit procedure: push the batch to
// the warehouse, write back every pending config marker (deleting
// exhausted chunk markers and flagging exhausted modules as synced),
// recompute per-network progress, and notify.
func (c *Coordinator) commit(ctx context.Context, batch *warehouse.Batch, configKeyMap map[string]marker, metas map[string]taskMeta) error {
	counts := batch.Len()
	minHeight, maxHeight := batchHeightRange(configKeyMap)

	if err := batch.Commit(ctx, c.wh, time.Now()); err != nil {
		return err
	}

	updatedNetworks := map[models.PrimaryId]bool{}

	for key, m := range configKeyMap {
		meta, ok := metas[key]
		if !ok {
			continue
		}
		updatedNetworks[meta.networkID] = true

		switch meta.kind {
		case taskTail:
			if err := c.store.Set(ctx, meta.key, encodeHeight(m.height)); err != nil {
				return err
			}

		case taskChunk:
			if m.height < m.max {
				if err := c.store.Set(ctx, meta.key, encodeRange(uint64(m.height), uint64(m.max))); err != nil {
					return err
				}
			} else {
				if err := c.store.Delete(ctx, meta.key); err != nil {
					return err
				}
			}

		case taskModule:
			if err := c.store.Set(ctx, meta.key, encodeRange(uint64(m.height), uint64(m.max))); err != nil {
				return err
			}
			if m.height >= m.max {
				syncedKey := models.KeyIndexerModuleSynced(meta.networkID, meta.moduleID)
				if err := c.store.Set(ctx, syncedKey, "1"); err != nil {
					return err
				}
			}
		}
	}

	// Cleanup: once a module is flagged synced, its range marker is no
	// longer needed.
	for key, m := range configKeyMap {
		meta, ok := metas[key]
		if !ok || meta.kind != taskModule {
			continue
		}
		if m.height >= m.max {
			if err := c.store.Delete(ctx, meta.key); err != nil {
				return err
			}
		}
	}

	for nid := range updatedNetworks {
		progress, err := c.computeProgress(ctx, nid)
		if err != nil {
			return err
		}
		if err := c.store.Set(ctx, models.KeyIndexerProgress(nid), formatProgress(progress)); err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.SetProgress(strconv.FormatUint(uint64(nid), 10), progress)
		}
		if c.log != nil {
			c.log.Info("network progress", zap.Uint64("network_id", uint64(nid)), zap.Float64("progress", progress))
		}
	}

	if c.metrics != nil {
		c.metrics.ObserveCommit(counts)
	}
	if c.notifier != nil {
		_ = c.notifier.Notify(ctx, minHeight, maxHeight, counts)
	}

	return nil
}

func batchHeightRange(configKeyMap map[string]marker) (min, max models.BlockHeight) {
	first := true
	for _, m := range configKeyMap {
		if first || m.height < min {
			min = m.height
		}
		if first || m.height > max {
			max = m.height
		}
		first = false
	}
	return
}
