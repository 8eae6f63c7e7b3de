package models

// Amount is the warehouse's `amounts` table row: a per-address balance
// delta for one (module, tx) pair (SPEC_FULL §3/§6).
type Amount struct {
	ModuleID     ModuleId
	NetworkID    PrimaryId
	BlockHeight  BlockHeight
	TxHash       string
	Address      string
	AssetAddress string
	AmountIn     string
	AmountOut    string
	CreatedAt    uint32
}

// NewAmount builds an Amount row.
func NewAmount(
	moduleID ModuleId,
	networkID PrimaryId,
	blockHeight BlockHeight,
	txHash, address string,
	asset *Address,
	amountIn, amountOut U256,
	createdAt uint32,
) Amount {
	assetAddr := BlankAddress()
	if asset != nil {
		assetAddr = *asset
	}

	return Amount{
		ModuleID:     moduleID,
		NetworkID:    networkID,
		BlockHeight:  blockHeight,
		TxHash:       toLower(txHash),
		Address:      toLower(address),
		AssetAddress: assetAddr.StorageForm(),
		AmountIn:     amountIn.String(),
		AmountOut:    amountOut.String(),
		CreatedAt:    createdAt,
	}
}
