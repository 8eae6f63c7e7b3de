package account

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barreleye-go/indexer/internal/cache"
	"github.com/barreleye-go/indexer/internal/models"
)

// fakeCacheStore is an in-memory cache.Store, enough to let isSmartContract
// resolve from a pre-seeded memo without ever dialing a.client.
type fakeCacheStore struct {
	rows map[string][]byte
}

func newFakeCacheStore() *fakeCacheStore { return &fakeCacheStore{rows: map[string][]byte{}} }

func (f *fakeCacheStore) Put(key, value []byte) error {
	f.rows[string(key)] = append([]byte(nil), value...)
	return nil
}

func (f *fakeCacheStore) Get(key []byte) ([]byte, error) {
	v, ok := f.rows[string(key)]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return v, nil
}

func (f *fakeCacheStore) Has(key []byte) (bool, error) {
	_, ok := f.rows[string(key)]
	return ok, nil
}

func (f *fakeCacheStore) Delete(key []byte) error {
	delete(f.rows, string(key))
	return nil
}

func (f *fakeCacheStore) Close() error { return nil }

const (
	eoaFrom      = "1111111111111111111111111111111111111111"
	eoaTo        = "2222222222222222222222222222222222222222"
	contractAddr = "3333333333333333333333333333333333333333"
	zeroAddr     = "0000000000000000000000000000000000000000"
)

func newTestAdapter(t *testing.T, contracts map[string]bool) *Adapter {
	t.Helper()
	store := newFakeCacheStore()
	c := cache.New(store, 0)
	nid := models.PrimaryId(7)
	for addr, isContract := range contracts {
		require.NoError(t, c.PutIsSmartContract(nid, checksum(addr), isContract))
	}
	return &Adapter{networkID: nid, cache: c}
}

func strPtr(s string) *string { return &s }

func hexVal(n int64) hexQuantity { return hexQuantity{big: big.NewInt(n)} }

// TestAccountFilterChain implements spec.md §8's S4: the zero-value/nil-to/
// zero-to/self-send/to-contract/from-contract filter chain, ending in
// exactly one Transfer for a clean EOA-to-EOA send.
func TestAccountFilterChain(t *testing.T) {
	ctx := context.Background()

	t.Run("zero value is skipped", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		tx := Transaction{Hash: "0xa", BlockHash: "0xb", From: "0x" + eoaFrom, To: strPtr("0x" + eoaTo), Value: hexVal(0)}
		batch, err := runTransfer(ctx, a, 1, 0, tx, nil)
		require.NoError(t, err)
		assert.Empty(t, batch.Transfers)
	})

	t.Run("nil to is skipped", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		tx := Transaction{Hash: "0xa", BlockHash: "0xb", From: "0x" + eoaFrom, To: nil, Value: hexVal(5)}
		batch, err := runTransfer(ctx, a, 1, 0, tx, nil)
		require.NoError(t, err)
		assert.Empty(t, batch.Transfers)
	})

	t.Run("zero address to is skipped", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		tx := Transaction{Hash: "0xa", BlockHash: "0xb", From: "0x" + eoaFrom, To: strPtr("0x" + zeroAddr), Value: hexVal(5)}
		batch, err := runTransfer(ctx, a, 1, 0, tx, nil)
		require.NoError(t, err)
		assert.Empty(t, batch.Transfers)
	})

	t.Run("self send is skipped", func(t *testing.T) {
		a := newTestAdapter(t, nil)
		tx := Transaction{Hash: "0xa", BlockHash: "0xb", From: "0x" + eoaFrom, To: strPtr("0x" + eoaFrom), Value: hexVal(5)}
		batch, err := runTransfer(ctx, a, 1, 0, tx, nil)
		require.NoError(t, err)
		assert.Empty(t, batch.Transfers)
	})

	t.Run("to is a contract is skipped", func(t *testing.T) {
		a := newTestAdapter(t, map[string]bool{"0x" + contractAddr: true, "0x" + eoaFrom: false})
		tx := Transaction{Hash: "0xa", BlockHash: "0xb", From: "0x" + eoaFrom, To: strPtr("0x" + contractAddr), Value: hexVal(5)}
		batch, err := runTransfer(ctx, a, 1, 0, tx, nil)
		require.NoError(t, err)
		assert.Empty(t, batch.Transfers)
	})

	t.Run("from is a contract is skipped", func(t *testing.T) {
		a := newTestAdapter(t, map[string]bool{"0x" + contractAddr: true, "0x" + eoaTo: false})
		tx := Transaction{Hash: "0xa", BlockHash: "0xb", From: "0x" + contractAddr, To: strPtr("0x" + eoaTo), Value: hexVal(5)}
		batch, err := runTransfer(ctx, a, 1, 0, tx, nil)
		require.NoError(t, err)
		assert.Empty(t, batch.Transfers)
	})

	t.Run("clean EOA to EOA yields one transfer", func(t *testing.T) {
		a := newTestAdapter(t, map[string]bool{"0x" + eoaFrom: false, "0x" + eoaTo: false})
		tx := Transaction{Hash: "0xa", BlockHash: "0xb", From: "0x" + eoaFrom, To: strPtr("0x" + eoaTo), Value: hexVal(5)}
		batch, err := runTransfer(ctx, a, 1, 0, tx, nil)
		require.NoError(t, err)
		require.Len(t, batch.Transfers, 1)
		tr := batch.Transfers[0]
		assert.Equal(t, "5", tr.Amount)
		assert.Equal(t, "5", tr.BatchAmount)
	})
}
