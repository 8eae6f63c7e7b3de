package models

import (
	"fmt"

	"github.com/pborman/uuid"
)

// Transfer is the warehouse's `transfers` table row (SPEC_FULL §3 / §6).
// Ordered by (network_id, block_height, tx_hash, from_address, to_address,
// asset_address) and partitioned by (network_id, toYYYYMM(created_at)); the
// dedup key for invariant 1 in SPEC_FULL §8 is exactly that ordering tuple
// plus amount.
type Transfer struct {
	UUID         string
	NetworkID    PrimaryId
	BlockHeight  BlockHeight
	BlockHash    string
	TxHash       string
	FromAddress  string
	ToAddress    string
	AssetAddress string
	Amount       string
	BatchAmount  string
	CreatedAt    uint32
}

// NewTransfer builds a Transfer, lowercasing hashes and addresses per the
// storage invariant and stamping a fresh uuid; createdAt is stored as given.
func NewTransfer(
	moduleID ModuleId,
	networkID PrimaryId,
	blockHeight BlockHeight,
	blockHash, txHash string,
	from, to Address,
	asset *Address,
	amount, batchAmount U256,
	createdAt uint32,
) Transfer {
	assetAddr := BlankAddress()
	if asset != nil {
		assetAddr = *asset
	}

	return Transfer{
		UUID:         uuid.New(),
		NetworkID:    networkID,
		BlockHeight:  blockHeight,
		BlockHash:    toLower(blockHash),
		TxHash:       toLower(txHash),
		FromAddress:  from.StorageForm(),
		ToAddress:    to.StorageForm(),
		AssetAddress: assetAddr.StorageForm(),
		Amount:       amount.String(),
		BatchAmount:  batchAmount.String(),
		CreatedAt:    createdAt,
	}
}

// DedupKey is the tuple the warehouse's ReplacingMergeTree-equivalent
// dedups on (SPEC_FULL §8, invariant 1).
func (t Transfer) DedupKey() string {
	return fmt.Sprintf("%d:%d:%s:%s:%s:%s:%s",
		t.NetworkID, t.BlockHeight, t.TxHash, t.FromAddress, t.ToAddress, t.AssetAddress, t.Amount)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
