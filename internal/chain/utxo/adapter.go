package utxo

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/barreleye-go/indexer/internal/cache"
	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/ratelimit"
)

// Adapter is the UTXO-style chain.Adapter implementation (SPEC_FULL §4.2).
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

func (a *Adapter) Family() models.ChainFamily { return models.FamilyUTXO }
func (a *Adapter) NetworkID() models.PrimaryId { return a.networkID }
func (a *Adapter) BlockTimeMs() uint64         { return a.blockTimeMs }
func (a *Adapter) RateLimiter() *ratelimit.Limiter { return a.limiter }

func (a *Adapter) ModuleIDs() []models.ModuleId {
	return []models.ModuleId{
		models.ModuleUTXOTransfer,
		models.ModuleUTXOBalance,
		models.ModuleUTXOLink,
		models.ModuleUTXORelationWholeBalance,
		models.ModuleUTXOCoinbase,
	}
}

func (a *Adapter) FormatAddress(raw string) string {
	return raw
}

func (a *Adapter) Connect(ctx context.Context) error {
	ep, err := chain.Connect(ctx, "utxo:"+strconv.FormatUint(uint64(a.networkID), 10), a.endpoints, func(probeCtx context.Context, ep chain.Endpoint) error {
		client := NewClient(ep)
		var count uint64
		return client.Call(probeCtx, "getblockcount", nil, &count)
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
	var count uint64
	if err := a.client.Call(ctx, "getblockcount", nil, &count); err != nil {
		return 0, errors.Wrap(err, "utxo: getblockcount")
	}
	return models.BlockHeight(count), nil
}

// ProcessBlock implements SPEC_FULL §4.2's process_block: fetch the block,
// resolve every tx's inputs/outputs to addresses, then run each requested
// module over the aggregated (input, output) address maps.
func (a *Adapter) ProcessBlock(ctx context.Context, height models.BlockHeight, moduleIDs []models.ModuleId) (chain.Batch, bool, error) {
	var batch chain.Batch

	if err := a.limiter.Wait(ctx); err != nil {
		return batch, false, err
	}
	var blockHash string
	if err := a.client.Call(ctx, "getblockhash", []interface{}{height}, &blockHash); err != nil {
		if isHeightOutOfRange(err) {
			return batch, false, nil
		}
		return batch, false, errors.Wrap(err, "utxo: getblockhash")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return batch, false, err
	}
	var block Block
	if err := a.client.Call(ctx, "getblock", []interface{}{blockHash, 2}, &block); err != nil {
		return batch, false, errors.Wrap(err, "utxo: getblock")
	}

	mods := selectModules(moduleIDs)

	for _, tx := range block.Transactions {
		inputs, err := a.resolveInputs(ctx, tx)
		if err != nil {
			return batch, false, err
		}

		outputs := map[string]uint64{}
		for _, out := range tx.Vout {
			addr := addressOrOutpoint(out, tx.TxID)
			outputs[addr] += out.Satoshis()
			if err := a.cache.PutTxBlockHeight(a.networkID, tx.TxID, height); err != nil {
				return batch, false, errors.Wrap(err, "utxo: cache output")
			}
		}

		for _, m := range mods {
			out := m.run(a.networkID, height, block.Hash, block.Time, tx, inputs, outputs)
			batch.Merge(out)
		}
	}

	return batch, true, nil
}

// resolveInputs aggregates each input's referenced output value by
// address, summing duplicate addresses (SPEC_FULL §4.2, "Inputs").
func (a *Adapter) resolveInputs(ctx context.Context, tx Tx) (map[string]uint64, error) {
	inputs := map[string]uint64{}
	if tx.IsCoinbase() {
		return inputs, nil
	}

	for _, in := range tx.Vin {
		out, err := a.fetchReferencedOutput(ctx, in.TxID, in.Vout)
		if err != nil {
			return nil, err
		}
		addr := addressOrOutpoint(out, in.TxID)
		inputs[addr] += out.Satoshis()
	}
	return inputs, nil
}

// fetchReferencedOutput resolves an input's previous output, consulting
// the tx-index cache first to target getrawtransaction's block-hash hint;
// falling back to a global lookup otherwise (SPEC_FULL §4.2).
func (a *Adapter) fetchReferencedOutput(ctx context.Context, txid string, vout uint32) (Vout, error) {
	params := []interface{}{txid, true}

	if height, found, err := a.cache.GetTxBlockHeight(a.networkID, txid); err == nil && found {
		if err := a.limiter.Wait(ctx); err != nil {
			return Vout{}, err
		}
		var blockHash string
		if err := a.client.Call(ctx, "getblockhash", []interface{}{uint64(height)}, &blockHash); err == nil {
			params = append(params, blockHash)
		}
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Vout{}, err
	}
	var tx Tx
	if err := a.client.Call(ctx, "getrawtransaction", params, &tx); err != nil {
		return Vout{}, errors.Wrapf(err, "utxo: getrawtransaction %s", txid)
	}

	for _, out := range tx.Vout {
		if out.N == vout {
			return out, nil
		}
	}
	return Vout{}, errors.Errorf("utxo: vout %d not found in tx %s", vout, txid)
}

// isHeightOutOfRange matches bitcoind's RPC_INVALID_PARAMETER (-8) "Block
// height out of range" response to getblockhash, the signal SPEC_FULL §4.1
// treats as "not yet available" rather than a propagated error.
func isHeightOutOfRange(err error) bool {
	var re *rpcError
	return errors.As(err, &re) && re.Code == -8
}
