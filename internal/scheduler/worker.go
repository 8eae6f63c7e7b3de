package scheduler

import (
	"context"
	"time"

	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/configstore"
	"github.com/barreleye-go/indexer/internal/models"
)

// runTask drives one task's strictly-increasing block read loop, pushing
// accumulated work through pipe whenever the task's range is exhausted or
// its local batch crosses 100 records (SPEC_FULL §4.1 / §5). For a tail
// task (max == nil) it consults the cheap BlockHeight(nid) config marker
// first, only falling back to the adapter's RPC-backed GetBlockHeight when
// that marker looks stale, mirroring original_source/indexer/src/indexer.rs.
func runTask(ctx context.Context, store configstore.Store, adapter chain.Adapter, spec taskSpec, pipe *chain.Pipe) error {
	height := spec.min
	var batch chain.Batch

	for {
		if pipe.Aborted() {
			return nil
		}

		if spec.max != nil {
			if height+1 > *spec.max {
				if batch.Len() > 0 {
					if _, err := pipe.Push(ctx, chain.PipeMessage{
						TaskKey:     spec.key.String(),
						MarkerValue: marker{height: height, max: *spec.max},
						Batch:       batch,
					}); err != nil {
						return err
					}
				}
				return nil
			}
		} else {
			blockHeightKey := models.KeyBlockHeight(spec.networkID)
			savedHeight, err := readHeight(ctx, store, blockHeightKey)
			if err != nil {
				return err
			}

			if height+1 > savedHeight {
				latest, err := adapter.GetBlockHeight(ctx)
				if err != nil {
					return err
				}
				if latest > savedHeight {
					if err := store.Set(ctx, blockHeightKey, encodeHeight(latest)); err != nil {
						return err
					}
				} else {
					time.Sleep(time.Duration(adapter.BlockTimeMs()) * time.Millisecond)
					continue
				}
			}
		}

		height++

		newBatch, ok, err := adapter.ProcessBlock(ctx, height, spec.modules)
		if err != nil {
			return err
		}
		if !ok {
			// Not yet available: wait one block time and retry this height
			// without advancing the marker.
			height--
			time.Sleep(time.Duration(adapter.BlockTimeMs()) * time.Millisecond)
			continue
		}
		batch.Merge(newBatch)

		if batch.Len() > 100 {
			markerValue := marker{height: height}
			if spec.max != nil {
				markerValue.max = *spec.max
			} else {
				markerValue.isTail = true
			}

			aborted, err := pipe.Push(ctx, chain.PipeMessage{
				TaskKey:     spec.key.String(),
				MarkerValue: markerValue,
				Batch:       batch,
			})
			if err != nil {
				return err
			}
			batch = chain.Batch{}
			if aborted {
				return nil
			}
		}
	}
}

func readHeight(ctx context.Context, store configstore.Store, key models.ConfigKey) (models.BlockHeight, error) {
	row, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return 0, err
	}
	return decodeHeight(row.Value), nil
}
