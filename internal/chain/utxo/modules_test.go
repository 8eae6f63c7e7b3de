package utxo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barreleye-go/indexer/internal/models"
)

// TestProportionalAllocation implements spec.md §8's S2: a tx with inputs
// {A:100} and outputs {B:60, C:40} yields two proportionally-allocated
// Transfers, each carrying the full output total as batch_amount, and no
// Link (runLink is a distinct module, not exercised here).
func TestProportionalAllocation(t *testing.T) {
	tx := Tx{TxID: "tx1", Vin: []Vin{{TxID: "prev", Vout: 0}}}
	inputs := map[string]uint64{"A": 100}
	outputs := map[string]uint64{"B": 60, "C": 40}

	batch := runTransfer(1, 5, "blockhash", 1234, tx, inputs, outputs)

	require.Len(t, batch.Transfers, 2)

	byTo := map[string]models.Transfer{}
	for _, tr := range batch.Transfers {
		byTo[tr.ToAddress] = tr
	}

	b, ok := byTo["b"]
	require.True(t, ok)
	assert.Equal(t, "a", b.FromAddress)
	assert.Equal(t, "60", b.Amount)
	assert.Equal(t, "100", b.BatchAmount)

	c, ok := byTo["c"]
	require.True(t, ok)
	assert.Equal(t, "a", c.FromAddress)
	assert.Equal(t, "40", c.Amount)
	assert.Equal(t, "100", c.BatchAmount)
}

// TestChangeDetection implements spec.md §8's S3: inputs {A:100}, outputs
// {A:30, B:70} still produce two proportionally-allocated Transfers (to the
// change address and to B), and runLink's inputs-intersect-outputs check
// keeps the change output from producing a Link.
func TestChangeDetection(t *testing.T) {
	tx := Tx{TxID: "tx2", Vin: []Vin{{TxID: "prev", Vout: 1}}}
	inputs := map[string]uint64{"A": 100}
	outputs := map[string]uint64{"A": 30, "B": 70}

	batch := runTransfer(1, 5, "blockhash", 1234, tx, inputs, outputs)
	require.Len(t, batch.Transfers, 2)

	var sawChange, sawExternal bool
	for _, tr := range batch.Transfers {
		switch tr.ToAddress {
		case "a":
			sawChange = true
			assert.Equal(t, "30", tr.Amount)
		case "b":
			sawExternal = true
			assert.Equal(t, "70", tr.Amount)
		}
	}
	assert.True(t, sawChange)
	assert.True(t, sawExternal)

	linkBatch := runLink(1, 5, "blockhash", 1234, tx, inputs, outputs)
	assert.Empty(t, linkBatch.Links, "change output must not produce a Link")
}
