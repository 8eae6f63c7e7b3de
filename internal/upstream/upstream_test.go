package upstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/warehouse"
)

// fakeWarehouse is a minimal warehouse.Warehouse good enough to drive
// Propagator.walk: SelectTransfers/SelectLinks serve canned rows, every
// other method is an unused no-op.
type fakeWarehouse struct {
	transfers []models.Transfer
	links     []models.Link
}

func (f *fakeWarehouse) InsertTransfers(context.Context, []models.Transfer) error { return nil }
func (f *fakeWarehouse) InsertAmounts(context.Context, []models.Amount) error     { return nil }
func (f *fakeWarehouse) InsertLinks(context.Context, []models.Link) error        { return nil }
func (f *fakeWarehouse) InsertRelations(context.Context, []models.Relation) error { return nil }

func (f *fakeWarehouse) SelectTransfers(_ context.Context, filter warehouse.TransferFilter) ([]models.Transfer, error) {
	var out []models.Transfer
	for _, tr := range f.transfers {
		if filter.NetworkID != 0 && tr.NetworkID != filter.NetworkID {
			continue
		}
		if filter.FromBlock != 0 && tr.BlockHeight < filter.FromBlock {
			continue
		}
		if filter.ToBlock != 0 && tr.BlockHeight > filter.ToBlock {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

func (f *fakeWarehouse) SelectLinks(_ context.Context, filter warehouse.LinkFilter) ([]models.Link, error) {
	var out []models.Link
	for _, l := range f.links {
		if filter.NetworkID != 0 && l.NetworkID != filter.NetworkID {
			continue
		}
		if filter.FromBlock != 0 && l.BlockHeight < filter.FromBlock {
			continue
		}
		if filter.ToBlock != 0 && l.BlockHeight > filter.ToBlock {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeWarehouse) FirstTransferFromAddress(context.Context, models.PrimaryId, string) (*models.Transfer, error) {
	return nil, nil
}

func (f *fakeWarehouse) DeleteRange(context.Context, models.PrimaryId, models.BlockHeight, models.BlockHeight) error {
	return nil
}

func (f *fakeWarehouse) Ping(context.Context) error { return nil }

// TestUpstreamPropagation implements spec.md §8's S5: a labeled source X
// with transfers X->A->B->C at heights 10,11,12 produces, over window
// (0,12], Links X->A[t1], X->B[t1,t2], X->C[t1,t2,t3].
func TestUpstreamPropagation(t *testing.T) {
	nid := models.PrimaryId(1)
	wh := &fakeWarehouse{
		transfers: []models.Transfer{
			{UUID: "t1", NetworkID: nid, BlockHeight: 10, FromAddress: "x", ToAddress: "a", CreatedAt: 10},
			{UUID: "t2", NetworkID: nid, BlockHeight: 11, FromAddress: "a", ToAddress: "b", CreatedAt: 11},
			{UUID: "t3", NetworkID: nid, BlockHeight: 12, FromAddress: "b", ToAddress: "c", CreatedAt: 12},
		},
	}

	p := &Propagator{wh: wh}
	la := models.LabeledAddress{ID: 1, NetworkID: nid, Address: "x"}

	links, err := p.walk(context.Background(), la, 0, 12)
	require.NoError(t, err)
	require.Len(t, links, 3)

	byTo := map[string]models.Link{}
	for _, l := range links {
		byTo[l.ToAddress] = l
	}

	a, ok := byTo["a"]
	require.True(t, ok)
	assert.Equal(t, "x", a.FromAddress)
	assert.Equal(t, []string{"t1"}, a.TransferUUIDs)

	b, ok := byTo["b"]
	require.True(t, ok)
	assert.Equal(t, "x", b.FromAddress)
	assert.Equal(t, []string{"t1", "t2"}, b.TransferUUIDs)

	c, ok := byTo["c"]
	require.True(t, ok)
	assert.Equal(t, "x", c.FromAddress)
	assert.Equal(t, []string{"t1", "t2", "t3"}, c.TransferUUIDs)
}
