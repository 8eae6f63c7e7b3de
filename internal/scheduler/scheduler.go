// Package scheduler implements the tail/chunk/module block-range scheduler
// (SPEC_FULL §4.1): per-network task discovery, coordinator/worker fan-out
// over a Pipe, ordered warehouse commits, and config-marker writeback.
//
// Structured after the teacher's handler-pool/checkpoint pattern in
// datasync/chaindatafetcher/chaindata_fetcher.go (a sync.WaitGroup of
// workers feeding a shared channel, guarded checkpoint state) generalized
// from one fixed checkpoint to the tail/chunk/module marker set described in
// original_source/indexer/src/indexer.rs.
package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/configstore"
	"github.com/barreleye-go/indexer/internal/metrics"
	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/notify"
	"github.com/barreleye-go/indexer/internal/warehouse"
)

// pollInterval is how often the coordinator select loop wakes on a quiet
// task set. The commit thresholds live in warehouse.Batch; the scheduler
// additionally commits whenever a task set drains to completion and on
// cancellation (SPEC_FULL §4.1).
const pollInterval = time.Second

// Coordinator owns the warehouse batch, the outstanding-marker map, and the
// abort broadcast for one indexing iteration. It is not safe for concurrent
// RunIteration calls; the supervisor loop in internal/app serializes them.
type Coordinator struct {
	store     configstore.Store
	wh        warehouse.Warehouse
	notifier  notify.CommitNotifier
	metrics   *metrics.Registry
	log       *zap.Logger
	numCPU    int
}

func New(store configstore.Store, wh warehouse.Warehouse, notifier notify.CommitNotifier, reg *metrics.Registry, log *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		wh:       wh,
		notifier: notifier,
		metrics:  reg,
		log:      log,
		numCPU:   runtime.NumCPU(),
	}
}

// RunIteration builds the task set for every network in networks, fans the
// tasks out over a Pipe, and drives the coordinator select loop until every
// task finishes or ctx is cancelled. It returns the first fatal task or
// commit error, if any, or ctx's error after cancellation.
func (c *Coordinator) RunIteration(ctx context.Context, networks map[models.PrimaryId]chain.Adapter) error {
	specs, metas, err := c.buildAllTasks(ctx, networks)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return nil
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	out := make(chan chain.PipeMessage, len(specs))
	receiptChans := make(map[string]chan struct{}, len(specs))
	abortCh := make(chan struct{})

	var wg sync.WaitGroup
	taskErrs := make(chan error, len(specs))

	for _, spec := range specs {
		receipt := make(chan struct{}, 1)
		receiptChans[spec.key.String()] = receipt

		pipe := chain.NewPipe(out, receipt, abortCh)
		wg.Add(1)
		go func(spec taskSpec) {
			defer wg.Done()
			if err := runTask(runCtx, c.store, networks[spec.networkID], spec, pipe); err != nil {
				select {
				case taskErrs <- err:
				default:
				}
				abort()
			}
		}(spec)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	batch := warehouse.NewBatch(time.Now())
	configKeyMap := map[string]marker{}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			close(abortCh)
			wg.Wait()
			// Persist what was already received; ctx is done, so the
			// commit runs on a fresh context.
			if batch.Len() > 0 {
				if err := c.commit(context.Background(), batch, configKeyMap, metas); err != nil {
					return err
				}
			}
			return ctx.Err()

		case msg, ok := <-out:
			if !ok {
				break loop
			}

			m, _ := msg.MarkerValue.(marker)
			configKeyMap[msg.TaskKey] = m
			msg.Batch.DrainInto(batch)

			if r, ok := receiptChans[msg.TaskKey]; ok {
				select {
				case r <- struct{}{}:
				default:
				}
			}

			if batch.ShouldCommit(time.Now()) {
				if err := c.commit(ctx, batch, configKeyMap, metas); err != nil {
					close(abortCh)
					wg.Wait()
					return err
				}
				configKeyMap = map[string]marker{}
			}

		case <-ticker.C:
			// periodic tick keeps the select loop from blocking forever on a
			// quiet task set; no-op beyond letting ctx.Done() get reobserved.
		}
	}

	wg.Wait()

	select {
	case err := <-taskErrs:
		return err
	default:
	}

	if batch.Len() > 0 {
		if err := c.commit(ctx, batch, configKeyMap, metas); err != nil {
			return err
		}
	}
	return nil
}
