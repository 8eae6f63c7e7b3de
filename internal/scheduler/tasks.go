package scheduler

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/models"
)

// taskKind distinguishes the three scheduler task shapes SPEC_FULL §4.1
// names: the unbounded tail, a bounded fast-sync chunk, and a bounded
// lagging-module catch-up.
type taskKind int

const (
	taskTail taskKind = iota
	taskChunk
	taskModule
)

type taskSpec struct {
	key       models.ConfigKey
	kind      taskKind
	networkID models.PrimaryId
	min       models.BlockHeight
	max       *models.BlockHeight
	moduleID  models.ModuleId // valid only when kind == taskModule
	modules   []models.ModuleId
}

// taskMeta is everything the commit procedure needs about a key it didn't
// build itself (it only sees the marker values that come back over the
// Pipe, keyed by the string form chain.PipeMessage.TaskKey carries).
type taskMeta struct {
	key       models.ConfigKey
	kind      taskKind
	networkID models.PrimaryId
	moduleID  models.ModuleId
}

// marker is the value a task reports back to the coordinator for one Pipe
// push: either the tail's new high-water mark, or a range task's new
// (min, max) after advancing past min.
type marker struct {
	isTail bool
	height models.BlockHeight
	max    models.BlockHeight
}

// buildAllTasks discovers the full task set across every network, mirroring
// original_source/indexer/src/indexer.rs's per-iteration setup.
func (c *Coordinator) buildAllTasks(ctx context.Context, networks map[models.PrimaryId]chain.Adapter) ([]taskSpec, map[string]taskMeta, error) {
	var specs []taskSpec
	metas := map[string]taskMeta{}

	for nid, adapter := range networks {
		nspecs, err := c.buildNetworkTasks(ctx, nid, adapter)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range nspecs {
			metas[s.key.String()] = taskMeta{key: s.key, kind: s.kind, networkID: s.networkID, moduleID: s.moduleID}
		}
		specs = append(specs, nspecs...)
	}
	return specs, metas, nil
}

func (c *Coordinator) buildNetworkTasks(ctx context.Context, nid models.PrimaryId, adapter chain.Adapter) ([]taskSpec, error) {
	var specs []taskSpec

	lastReadBlock, err := c.getHeight(ctx, models.KeyIndexerTailSync(nid))
	if err != nil {
		return nil, err
	}

	blockHeightKey := models.KeyBlockHeight(nid)
	savedHeight, err := c.getHeight(ctx, blockHeightKey)
	if err != nil {
		return nil, err
	}
	var blockHeight models.BlockHeight
	if savedHeight > lastReadBlock {
		blockHeight = savedHeight
	} else {
		h, err := adapter.GetBlockHeight(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, blockHeightKey, encodeHeight(h)); err != nil {
			return nil, err
		}
		blockHeight = h
	}

	// First-time network: split into NumCPU chunks for faster initial sync
	// (SPEC_FULL §4.1).
	if lastReadBlock == 0 && c.numCPU > 0 && uint64(blockHeight) > 1 {
		existing, err := c.store.GetManyByPrefix(ctx, models.ChunkSyncPrefix(nid))
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			chunkSize := (uint64(blockHeight) - 1) / uint64(c.numCPU)

			var min uint64
			max := chunkSize
			for i := 0; i < c.numCPU; i++ {
				if i+1 == c.numCPU {
					max = uint64(blockHeight) - 2
				}

				key := models.KeyIndexerChunkSync(nid, min)
				if err := c.store.Set(ctx, key, encodeRange(min, max)); err != nil {
					return nil, err
				}

				min = max + 1
				max = min + chunkSize
			}

			lastReadBlock = models.BlockHeight(uint64(blockHeight) - 1)
			if err := c.store.Set(ctx, models.KeyIndexerTailSync(nid), encodeHeight(lastReadBlock)); err != nil {
				return nil, err
			}

			for _, mid := range adapter.ModuleIDs() {
				if err := c.store.Set(ctx, models.KeyIndexerModuleSynced(nid, mid), "1"); err != nil {
					return nil, err
				}
			}
		}
	}

	// Tail task: consumes new blocks as they arrive, all modules.
	specs = append(specs, taskSpec{
		key:       models.KeyIndexerTailSync(nid),
		kind:      taskTail,
		networkID: nid,
		min:       lastReadBlock,
		modules:   adapter.ModuleIDs(),
	})

	// Outstanding fast-sync chunks.
	chunkRows, err := c.store.GetManyByPrefix(ctx, models.ChunkSyncPrefix(nid))
	if err != nil {
		return nil, err
	}
	for _, row := range chunkRows {
		min, max, ok := decodeRange(row.Value)
		if !ok {
			continue
		}
		key := models.KeyIndexerChunkSync(nid, min)
		specs = append(specs, taskSpec{
			key:       key,
			kind:      taskChunk,
			networkID: nid,
			min:       models.BlockHeight(min),
			max:       blockHeightPtr(models.BlockHeight(max)),
			modules:   adapter.ModuleIDs(),
		})
	}

	// Per-module catch-up for modules not yet synced.
	for _, mid := range adapter.ModuleIDs() {
		syncedKey := models.KeyIndexerModuleSynced(nid, mid)
		_, found, err := c.store.Get(ctx, syncedKey)
		if err != nil {
			return nil, err
		}
		if found {
			continue
		}

		rangeKey := models.KeyIndexerModuleSync(nid, mid)
		row, found, err := c.store.Get(ctx, rangeKey)
		if err != nil {
			return nil, err
		}

		var min, max uint64
		if found {
			var ok bool
			min, max, ok = decodeRange(row.Value)
			if !ok {
				continue
			}
		} else {
			min, max = 0, uint64(lastReadBlock)
			if lastReadBlock > 0 {
				if err := c.store.Set(ctx, rangeKey, encodeRange(min, max)); err != nil {
					return nil, err
				}
			}
		}

		if min < max {
			specs = append(specs, taskSpec{
				key:       rangeKey,
				kind:      taskModule,
				networkID: nid,
				min:       models.BlockHeight(min),
				max:       blockHeightPtr(models.BlockHeight(max)),
				moduleID:  mid,
				modules:   []models.ModuleId{mid},
			})
		}
	}

	return specs, nil
}

func (c *Coordinator) getHeight(ctx context.Context, key models.ConfigKey) (models.BlockHeight, error) {
	row, found, err := c.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.ParseUint(row.Value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "scheduler: decode height for %s", key.String())
	}
	return models.BlockHeight(n), nil
}

func blockHeightPtr(h models.BlockHeight) *models.BlockHeight { return &h }

func encodeHeight(h models.BlockHeight) string {
	return strconv.FormatUint(uint64(h), 10)
}

func decodeHeight(s string) models.BlockHeight {
	n, _ := strconv.ParseUint(s, 10, 64)
	return models.BlockHeight(n)
}

func encodeRange(min, max uint64) string {
	return strconv.FormatUint(min, 10) + ":" + strconv.FormatUint(max, 10)
}

func decodeRange(v string) (min, max uint64, ok bool) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	min, err1 := strconv.ParseUint(parts[0], 10, 64)
	max, err2 := strconv.ParseUint(parts[1], 10, 64)
	return min, max, err1 == nil && err2 == nil
}
