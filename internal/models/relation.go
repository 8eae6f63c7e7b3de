package models

import "github.com/pborman/uuid"

// Relation is the warehouse's `relations` table row: a weaker co-occurrence
// observation between two addresses that isn't backed by a transfer path
// (spec.md GLOSSARY: "Relation"), e.g. the UTXO whole-balance-transfer
// heuristic (SPEC_FULL §4.2).
type Relation struct {
	UUID        string
	ModuleID    ModuleId
	NetworkID   PrimaryId
	BlockHeight BlockHeight
	TxHash      string
	FromAddress string
	ToAddress   string
	Reason      RelationReason
	CreatedAt   uint32
}

// NewRelation builds a Relation row.
func NewRelation(
	moduleID ModuleId,
	networkID PrimaryId,
	blockHeight BlockHeight,
	txHash, from, to string,
	reason RelationReason,
	createdAt uint32,
) Relation {
	return Relation{
		UUID:        uuid.New(),
		ModuleID:    moduleID,
		NetworkID:   networkID,
		BlockHeight: blockHeight,
		TxHash:      toLower(txHash),
		FromAddress: toLower(from),
		ToAddress:   toLower(to),
		Reason:      reason,
		CreatedAt:   createdAt,
	}
}
