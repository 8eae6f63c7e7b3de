package account

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/barreleye-go/indexer/internal/cache"
	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/ratelimit"
)

// Adapter is the account-style chain.Adapter implementation (SPEC_FULL §4.3).
type Adapter struct {
	networkID   models.PrimaryId
	endpoints   []chain.Endpoint
	blockTimeMs uint64
	cache       *cache.Cache
	limiter     *ratelimit.Limiter

	client *Client
}

func New(networkID models.PrimaryId, endpoints []chain.Endpoint, blockTimeMs uint64, rps int, c *cache.Cache) *Adapter {
	return &Adapter{
		networkID:   networkID,
		endpoints:   endpoints,
		blockTimeMs: blockTimeMs,
		cache:       c,
		limiter:     ratelimit.New(rps),
	}
}

func (a *Adapter) Family() models.ChainFamily     { return models.FamilyAccount }
func (a *Adapter) NetworkID() models.PrimaryId    { return a.networkID }
func (a *Adapter) BlockTimeMs() uint64            { return a.blockTimeMs }
func (a *Adapter) RateLimiter() *ratelimit.Limiter { return a.limiter }

func (a *Adapter) ModuleIDs() []models.ModuleId {
	return []models.ModuleId{
		models.ModuleAccountTransfer,
		models.ModuleAccountTokenTransfer,
		models.ModuleAccountTokenBalance,
		models.ModuleAccountERC20Transfer,
	}
}

func (a *Adapter) FormatAddress(raw string) string {
	return checksum(raw)
}

func (a *Adapter) Connect(ctx context.Context) error {
	ep, err := chain.Connect(ctx, "account:"+strconv.FormatUint(uint64(a.networkID), 10), a.endpoints, func(probeCtx context.Context, ep chain.Endpoint) error {
		client := NewClient(ep)
		var height string
		return client.Call(probeCtx, "eth_blockNumber", nil, &height)
	})
	if err != nil {
		return err
	}
	a.client = NewClient(ep)
	return nil
}

func (a *Adapter) GetBlockHeight(ctx context.Context) (models.BlockHeight, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	var height string
	if err := a.client.Call(ctx, "eth_blockNumber", nil, &height); err != nil {
		return 0, errors.Wrap(err, "account: eth_blockNumber")
	}
	return models.BlockHeight(hexToUint64(height)), nil
}

// ProcessBlock implements SPEC_FULL §4.3's process_block: fetch the block
// with its full transactions, then run each requested module over every tx.
func (a *Adapter) ProcessBlock(ctx context.Context, height models.BlockHeight, moduleIDs []models.ModuleId) (chain.Batch, bool, error) {
	var batch chain.Batch

	if err := a.limiter.Wait(ctx); err != nil {
		return batch, false, err
	}
	heightHex := "0x" + strconv.FormatUint(uint64(height), 16)
	var block Block
	if err := a.client.Call(ctx, "eth_getBlockByNumber", []interface{}{heightHex, true}, &block); err != nil {
		return batch, false, errors.Wrap(err, "account: eth_getBlockByNumber")
	}
	if block.Hash == "" {
		// Not yet available (SPEC_FULL §4.1, "not yet available").
		return batch, false, nil
	}

	mods := selectModules(moduleIDs)
	needsReceipt := false
	for _, m := range mods {
		if m.needsReceipt {
			needsReceipt = true
			break
		}
	}

	blockTime := block.TimeUnix()

	for _, tx := range block.Transactions {
		var receipt *Receipt
		if needsReceipt {
			r, err := a.fetchReceipt(ctx, tx.Hash)
			if err != nil {
				return batch, false, err
			}
			receipt = r
		}

		for _, m := range mods {
			out, err := m.run(ctx, a, height, blockTime, tx, receipt)
			if err != nil {
				return batch, false, err
			}
			batch.Merge(out)
		}
	}

	return batch, true, nil
}

func (a *Adapter) fetchReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := a.client.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &receipt); err != nil {
		return nil, errors.Wrapf(err, "account: eth_getTransactionReceipt %s", txHash)
	}
	return &receipt, nil
}

// isSmartContract implements SPEC_FULL §4.3's contract detection: a cached
// (network_id, checksum(addr)) -> bool memo, backed by get_code on miss.
func (a *Adapter) isSmartContract(ctx context.Context, addr string) (bool, error) {
	cs := checksum(addr)
	if isContract, found, err := a.cache.IsSmartContract(a.networkID, cs); err == nil && found {
		return isContract, nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return false, err
	}
	var code string
	if err := a.client.Call(ctx, "eth_getCode", []interface{}{addr, "latest"}, &code); err != nil {
		return false, errors.Wrapf(err, "account: eth_getCode %s", addr)
	}
	isContract := code != "" && code != "0x"

	if err := a.cache.PutIsSmartContract(a.networkID, cs, isContract); err != nil {
		return false, err
	}
	return isContract, nil
}
