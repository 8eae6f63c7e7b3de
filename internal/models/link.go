package models

import "github.com/pborman/uuid"

// Link is the warehouse's `links` table row. It has two producers:
//
//   - The upstream propagator (SPEC_FULL §4.4) emits chain-links: TransferUUIDs
//     holds the ordered path of Transfer ids from a labeled source address to
//     ToAddress. Reason is zero. SPEC_FULL §8 invariant 3 binds only this
//     producer: TransferUUIDs must be non-empty and reference real Transfers.
//   - A chain's Link module (e.g. the UTXO "possible self-transfer" module,
//     SPEC_FULL §4.2) emits single-hop observation-links: Reason is set,
//     TxHash names the originating transaction, and TransferUUIDs is left
//     empty (the module doesn't couple itself to the Transfer module's
//     independently-generated uuids).
//
// This split is grounded on original_source, which has the same two shapes
// under one `Link` model: chain/src/bitcoin/modules/link.rs constructs one
// with (tx_hash, reason), while indexer/src/upstream.rs constructs one with
// a transfer_uuids chain and no reason.
type Link struct {
	UUID          string
	NetworkID     PrimaryId
	BlockHeight   BlockHeight
	FromAddress   string
	ToAddress     string
	TransferUUIDs []string
	TxHash        string
	Reason        LinkReason
	CreatedAt     uint32
}

// NewChainLink builds a propagator-emitted hop-chain Link.
func NewChainLink(networkID PrimaryId, blockHeight BlockHeight, from, to string, transferUUIDs []string, createdAt uint32) Link {
	uuids := make([]string, len(transferUUIDs))
	copy(uuids, transferUUIDs)

	return Link{
		UUID:          uuid.New(),
		NetworkID:     networkID,
		BlockHeight:   blockHeight,
		FromAddress:   toLower(from),
		ToAddress:     toLower(to),
		TransferUUIDs: uuids,
		CreatedAt:     createdAt,
	}
}

// NewObservationLink builds a module-emitted single-hop Link such as the
// UTXO chain's PossibleSelfTransfer observation.
func NewObservationLink(networkID PrimaryId, blockHeight BlockHeight, txHash, from, to string, reason LinkReason, createdAt uint32) Link {
	return Link{
		UUID:        uuid.New(),
		NetworkID:   networkID,
		BlockHeight: blockHeight,
		TxHash:      toLower(txHash),
		FromAddress: toLower(from),
		ToAddress:   toLower(to),
		Reason:      reason,
		CreatedAt:   createdAt,
	}
}
