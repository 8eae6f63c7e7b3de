// Package upstream is the taint-propagation walk (SPEC_FULL §4.4): starting
// from each tracked labeled address, it follows outgoing Transfers forward
// in bounded 10-block windows and records the resulting hop chains as
// Links, so a watchlist hit can later be traced downstream through
// intermediate addresses even when no individual hop touches a labeled
// address itself.
//
// Grounded on original_source/indexer/src/upstream.rs's index_upstream: the
// eligible-network filter (only networks whose tail has fully caught up and
// that aren't mid fast-sync), the per-labeled-address block-height cursor,
// and the indexed/tracking-set walk are all reproduced here in the same
// shape. Labeled addresses are walked one after another in the calling
// goroutine; there is no per-address fan-out.
package upstream

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/barreleye-go/indexer/internal/configstore"
	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/registry"
	"github.com/barreleye-go/indexer/internal/warehouse"
)

// windowSize bounds how many blocks a single pass walks per labeled
// address, keeping one iteration's cost independent of how far behind a
// label has fallen (SPEC_FULL §4.4).
const windowSize = 10

// Propagator owns one pass of the upstream walk across every tracked
// labeled address.
type Propagator struct {
	registry registry.Store
	store    configstore.Store
	wh       warehouse.Warehouse
	env      string
	log      *zap.Logger
}

func New(reg registry.Store, store configstore.Store, wh warehouse.Warehouse, env string, log *zap.Logger) *Propagator {
	return &Propagator{registry: reg, store: store, wh: wh, env: env, log: log}
}

// Run drives RunIteration in a loop, only while isLeading reports true
// (only the elected primary propagates taint, same as every other indexing
// path — SPEC_FULL §4.5). It sleeps 5s when there's nothing eligible to
// process and 1s between passes otherwise, mirroring
// original_source/indexer/src/upstream.rs's loop.
func (p *Propagator) Run(ctx context.Context, isLeading func() bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !isLeading() {
			if err := sleep(ctx, time.Second); err != nil {
				return err
			}
			continue
		}

		processed, err := p.RunIteration(ctx)
		if err != nil {
			if p.log != nil {
				p.log.Warn("upstream iteration failed", zap.Error(err))
			}
			if err := sleep(ctx, time.Second); err != nil {
				return err
			}
			continue
		}

		if processed == 0 {
			if err := sleep(ctx, 5*time.Second); err != nil {
				return err
			}
			continue
		}

		if err := sleep(ctx, time.Second); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunIteration performs one pass: for every tracked labeled address on a
// fully tail-synced, non-fast-syncing network, it walks forward up to
// windowSize blocks from its saved cursor (or its first observed transfer,
// if it has none), inserts any new Links discovered, and advances the
// cursor. It returns how many labeled addresses had a window to process.
func (p *Propagator) RunIteration(ctx context.Context) (int, error) {
	networks, err := p.registry.GetActiveNetworks(ctx, p.env)
	if err != nil {
		return 0, err
	}

	var eligible []models.PrimaryId
	blockHeightMap := map[models.PrimaryId]models.BlockHeight{}
	for _, n := range networks {
		tailSyncing, err := p.exists(ctx, models.KeyIndexerTailSync(n.ID))
		if err != nil {
			return 0, err
		}
		if !tailSyncing {
			continue
		}

		activelySyncing, err := p.hasAnyPrefix(ctx, models.ChunkSyncPrefix(n.ID), models.ModuleSyncPrefix(n.ID))
		if err != nil {
			return 0, err
		}
		if activelySyncing {
			continue
		}

		tailBlock, err := p.getHeight(ctx, models.KeyIndexerTailSync(n.ID))
		if err != nil {
			return 0, err
		}
		if tailBlock == 0 {
			continue
		}

		eligible = append(eligible, n.ID)
		blockHeightMap[n.ID] = tailBlock
	}
	if len(eligible) == 0 {
		return 0, nil
	}

	labeledAddresses, err := p.registry.GetTrackedLabeledAddresses(ctx, eligible)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, la := range labeledAddresses {
		maxBlockHeight, ok := blockHeightMap[la.NetworkID]
		if !ok {
			continue
		}

		cursor, err := p.startingBlock(ctx, la)
		if err != nil {
			return processed, err
		}
		if cursor >= maxBlockHeight {
			continue
		}

		min := cursor + 1
		max := min + windowSize - 1
		if max > maxBlockHeight {
			max = maxBlockHeight
		}

		newLinks, err := p.walk(ctx, la, min, max)
		if err != nil {
			return processed, err
		}

		if len(newLinks) > 0 {
			if err := p.wh.InsertLinks(ctx, newLinks); err != nil {
				return processed, err
			}
		}

		key := models.KeyIndexerUpstreamSync(la.NetworkID, la.ID)
		if err := p.store.Set(ctx, key, encodeHeight(max)); err != nil {
			return processed, err
		}
		processed++

		if p.log != nil {
			p.log.Debug("upstream window processed",
				zap.Uint64("network_id", uint64(la.NetworkID)),
				zap.Uint64("labeled_address_id", uint64(la.ID)),
				zap.Uint64("from_block", uint64(min)),
				zap.Uint64("to_block", uint64(max)),
				zap.Int("new_links", len(newLinks)),
			)
		}
	}

	return processed, nil
}

// startingBlock is the labeled address's saved IndexerUpstreamSync cursor,
// or if it has none yet, one block before its first outgoing transfer (so
// the first window starts exactly at its first observed activity).
func (p *Propagator) startingBlock(ctx context.Context, la models.LabeledAddress) (models.BlockHeight, error) {
	row, found, err := p.store.Get(ctx, models.KeyIndexerUpstreamSync(la.NetworkID, la.ID))
	if err != nil {
		return 0, err
	}
	if found {
		return decodeHeight(row.Value), nil
	}

	first, err := p.wh.FirstTransferFromAddress(ctx, la.NetworkID, la.Address)
	if err != nil {
		return 0, err
	}
	if first == nil || first.BlockHeight == 0 {
		return 0, nil
	}
	return first.BlockHeight - 1, nil
}

// walk builds the indexed/tracking structures for [min, max] and returns
// every new chain-hop Link discovered in that window.
func (p *Propagator) walk(ctx context.Context, la models.LabeledAddress, min, max models.BlockHeight) ([]models.Link, error) {
	tracking := map[string]bool{la.Address: true}
	indexed := map[string][]models.Link{}

	seedLinks, err := p.wh.SelectLinks(ctx, warehouse.LinkFilter{
		NetworkID: la.NetworkID,
		FromBlock: min,
		ToBlock:   max,
	})
	if err != nil {
		return nil, err
	}
	for _, link := range seedLinks {
		tracking[link.ToAddress] = true
		indexed[link.ToAddress] = append(indexed[link.ToAddress], link)
	}

	transfers, err := p.wh.SelectTransfers(ctx, warehouse.TransferFilter{
		NetworkID: la.NetworkID,
		FromBlock: min,
		ToBlock:   max,
	})
	if err != nil {
		return nil, err
	}

	var newLinks []models.Link
	for _, transfer := range transfers {
		if !tracking[transfer.FromAddress] {
			continue
		}

		// FromAddress is always the root labeled address, never the
		// immediate hop's sender: a Link records "this chain of transfers
		// taints ToAddress, reached from the label," not a single hop.
		var branches []models.Link
		if prev, ok := indexed[transfer.FromAddress]; ok && len(prev) > 0 {
			for _, prevLink := range prev {
				chain := append(append([]string{}, prevLink.TransferUUIDs...), transfer.UUID)
				branches = append(branches, models.NewChainLink(
					la.NetworkID, transfer.BlockHeight, la.Address, transfer.ToAddress, chain, transfer.CreatedAt,
				))
			}
		} else {
			branches = append(branches, models.NewChainLink(
				la.NetworkID, transfer.BlockHeight, la.Address, transfer.ToAddress, []string{transfer.UUID}, transfer.CreatedAt,
			))
		}

		tracking[transfer.ToAddress] = true
		for _, link := range branches {
			newLinks = append(newLinks, link)
			indexed[link.ToAddress] = append(indexed[link.ToAddress], link)
		}
	}

	return newLinks, nil
}

func (p *Propagator) exists(ctx context.Context, key models.ConfigKey) (bool, error) {
	_, found, err := p.store.Get(ctx, key)
	return found, err
}

func (p *Propagator) hasAnyPrefix(ctx context.Context, prefixes ...string) (bool, error) {
	for _, prefix := range prefixes {
		rows, err := p.store.GetManyByPrefix(ctx, prefix)
		if err != nil {
			return false, err
		}
		if len(rows) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (p *Propagator) getHeight(ctx context.Context, key models.ConfigKey) (models.BlockHeight, error) {
	row, found, err := p.store.Get(ctx, key)
	if err != nil || !found {
		return 0, err
	}
	return decodeHeight(row.Value), nil
}

func encodeHeight(h models.BlockHeight) string {
	return strconv.FormatUint(uint64(h), 10)
}

func decodeHeight(s string) models.BlockHeight {
	n, _ := strconv.ParseUint(s, 10, 64)
	return models.BlockHeight(n)
}
