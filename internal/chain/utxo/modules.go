package utxo

import (
	"math"

	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/models"
)

type module struct {
	id  models.ModuleId
	run func(networkID models.PrimaryId, height models.BlockHeight, blockHash string, blockTime uint32, tx Tx, inputs, outputs map[string]uint64) chain.Batch
}

var allModules = []module{
	{models.ModuleUTXOTransfer, runTransfer},
	{models.ModuleUTXOBalance, runBalance},
	{models.ModuleUTXOLink, runLink},
	{models.ModuleUTXORelationWholeBalance, runRelationWholeBalance},
	{models.ModuleUTXOCoinbase, runCoinbase},
}

func selectModules(ids []models.ModuleId) []module {
	want := map[models.ModuleId]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []module
	for _, m := range allModules {
		if want[m.id] {
			out = append(out, m)
		}
	}
	return out
}

// runTransfer implements SPEC_FULL §4.2's Transfer module: proportional
// allocation across every (input, output) pair, skipping coinbase. The
// float round is preserved verbatim per SPEC_FULL §9's open question.
func runTransfer(networkID models.PrimaryId, height models.BlockHeight, blockHash string, blockTime uint32, tx Tx, inputs, outputs map[string]uint64) chain.Batch {
	var batch chain.Batch
	if tx.IsCoinbase() {
		return batch
	}

	var inputTotal, outputTotal uint64
	for _, v := range inputs {
		inputTotal += v
	}
	for _, v := range outputs {
		outputTotal += v
	}
	if inputTotal == 0 {
		return batch
	}
	batchAmount := models.U256FromUint64(outputTotal)

	for from, inAmt := range inputs {
		for to, outAmt := range outputs {
			if from == to {
				continue
			}
			amount := math.Round(float64(inAmt) / float64(inputTotal) * float64(outAmt))
			batch.Transfers = append(batch.Transfers, models.NewTransfer(
				models.ModuleUTXOTransfer, networkID, height, blockHash, tx.TxID,
				models.NewAddress(from), models.NewAddress(to), nil,
				models.U256FromUint64(uint64(amount)), batchAmount, blockTime,
			))
		}
	}
	return batch
}

// runBalance implements SPEC_FULL §4.2's Balance module: per-address
// (amount_in, amount_out) across the tx, inputs contributing to
// amount_out and outputs to amount_in.
func runBalance(networkID models.PrimaryId, height models.BlockHeight, blockHash string, blockTime uint32, tx Tx, inputs, outputs map[string]uint64) chain.Batch {
	var batch chain.Batch
	type pair struct{ in, out uint64 }
	balances := map[string]*pair{}

	if !tx.IsCoinbase() {
		for addr, amt := range inputs {
			p, ok := balances[addr]
			if !ok {
				p = &pair{}
				balances[addr] = p
			}
			p.out += amt
		}
	}
	for addr, amt := range outputs {
		p, ok := balances[addr]
		if !ok {
			p = &pair{}
			balances[addr] = p
		}
		p.in += amt
	}

	for addr, p := range balances {
		batch.Amounts = append(batch.Amounts, models.NewAmount(
			models.ModuleUTXOBalance, networkID, height, tx.TxID, addr, nil,
			models.U256FromUint64(p.in), models.U256FromUint64(p.out), blockTime,
		))
	}
	return batch
}

// runLink implements SPEC_FULL §4.2's Link module.
func runLink(networkID models.PrimaryId, height models.BlockHeight, blockHash string, blockTime uint32, tx Tx, inputs, outputs map[string]uint64) chain.Batch {
	var batch chain.Batch
	if tx.IsCoinbase() {
		return batch
	}

	if intersects(inputs, outputs) {
		return batch
	}

	for from := range inputs {
		for to := range outputs {
			if from == to || !isValidAddress(from) || !isValidAddress(to) {
				continue
			}
			batch.Links = append(batch.Links, models.NewObservationLink(
				networkID, height, tx.TxID, from, to, models.LinkPossibleSelfTransfer, blockTime,
			))
		}
	}
	return batch
}

// runRelationWholeBalance implements SPEC_FULL §4.2's Relation
// "WholeBalanceTransfer" module.
func runRelationWholeBalance(networkID models.PrimaryId, height models.BlockHeight, blockHash string, blockTime uint32, tx Tx, inputs, outputs map[string]uint64) chain.Batch {
	var batch chain.Batch
	if tx.IsCoinbase() || len(outputs) != 1 {
		return batch
	}

	for from := range inputs {
		for to := range outputs {
			if from == to || !isValidAddress(from) || !isValidAddress(to) {
				continue
			}
			batch.Relations = append(batch.Relations, models.NewRelation(
				models.ModuleUTXORelationWholeBalance, networkID, height, tx.TxID, from, to,
				models.RelationWholeBalanceTransfer, blockTime,
			))
		}
	}
	return batch
}

// runCoinbase implements SPEC_FULL §4.2's Coinbase module.
func runCoinbase(networkID models.PrimaryId, height models.BlockHeight, blockHash string, blockTime uint32, tx Tx, _ map[string]uint64, outputs map[string]uint64) chain.Batch {
	var batch chain.Batch
	if !tx.IsCoinbase() {
		return batch
	}

	var total uint64
	for _, v := range outputs {
		total += v
	}
	batchAmount := models.U256FromUint64(total)

	for to, amt := range outputs {
		batch.Transfers = append(batch.Transfers, models.NewTransfer(
			models.ModuleUTXOCoinbase, networkID, height, blockHash, tx.TxID,
			models.BlankAddress(), models.NewAddress(to), nil,
			models.U256FromUint64(amt), batchAmount, blockTime,
		))
	}
	return batch
}

func intersects(a, b map[string]uint64) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
