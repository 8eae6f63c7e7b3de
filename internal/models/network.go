package models

// Network is the config store's `networks` table row (SPEC_FULL §3). The
// scheduler reads the active set on every iteration restart (triggered by
// NetworksUpdated) and spawns tail/chunk/module tasks per network.
type Network struct {
	ID           PrimaryId
	Name         string
	Env          string
	Family       ChainFamily
	ChainID      uint64
	BlockTimeMs  uint64
	RPCEndpoints []string
	RPS          uint32
	IsActive     bool
	IsDeleted    bool
}

// LabeledAddress ties a Label to a concrete on-chain address the upstream
// propagator treats as a taint source (SPEC_FULL §3/§4.4). ID is distinct
// from LabelID: one label can cover many addresses, and IndexerUpstreamSync
// tracks progress per address, not per label.
type LabeledAddress struct {
	ID        PrimaryId
	LabelID   PrimaryId
	NetworkID PrimaryId
	Address   string
	IsDeleted bool
}

// Label is a watchlist entry. IsHardcoded labels ship with the binary and
// skip the refresh fetch; IsTracked gates whether LabeledAddresses under it
// feed the upstream propagator.
type Label struct {
	ID          PrimaryId
	Name        string
	IsEnabled   bool
	IsHardcoded bool
	IsTracked   bool
	IsDeleted   bool
}
