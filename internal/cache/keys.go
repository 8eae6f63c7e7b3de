package cache

import (
	"encoding/binary"

	"github.com/barreleye-go/indexer/internal/models"
)

// Cache wraps a Store with a fastcache hot layer and the two domain-typed
// accessors SPEC_FULL §3 names: the UTXO tx-index and the account chain's
// is-smart-contract memo.
type Cache struct {
	store Store
	hot   *hotLayer
}

// New wraps store with a hotLayer sized hotBytes.
func New(store Store, hotBytes int) *Cache {
	if hotBytes <= 0 {
		hotBytes = 32 * 1024 * 1024
	}
	return &Cache{store: store, hot: newHotLayer(hotBytes)}
}

func txIndexKey(networkID models.PrimaryId, txid string) []byte {
	key := make([]byte, 0, 10+len(txid))
	key = append(key, 't', 'x')
	var nid [8]byte
	binary.BigEndian.PutUint64(nid[:], uint64(networkID))
	key = append(key, nid[:]...)
	key = append(key, txid...)
	return key
}

// PutTxBlockHeight records (network_id, txid) -> block_height for the UTXO
// input-resolution fast path (SPEC_FULL §4.2, "Inputs").
func (c *Cache) PutTxBlockHeight(networkID models.PrimaryId, txid string, height models.BlockHeight) error {
	key := txIndexKey(networkID, txid)
	var value [8]byte
	binary.BigEndian.PutUint64(value[:], uint64(height))
	c.hot.set(key, value[:])
	return c.store.Put(key, value[:])
}

// GetTxBlockHeight looks up a previously indexed (network_id, txid). found
// is false on a clean miss; callers fall back to a global tx fetch.
func (c *Cache) GetTxBlockHeight(networkID models.PrimaryId, txid string) (height models.BlockHeight, found bool, err error) {
	key := txIndexKey(networkID, txid)
	if v, ok := c.hot.get(key); ok {
		return models.BlockHeight(binary.BigEndian.Uint64(v)), true, nil
	}

	v, err := c.store.Get(key)
	if err == ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	c.hot.set(key, v)
	return models.BlockHeight(binary.BigEndian.Uint64(v)), true, nil
}

func contractKey(networkID models.PrimaryId, address string) []byte {
	key := make([]byte, 0, 10+len(address))
	key = append(key, 's', 'c')
	var nid [8]byte
	binary.BigEndian.PutUint64(nid[:], uint64(networkID))
	key = append(key, nid[:]...)
	key = append(key, address...)
	return key
}

// PutIsSmartContract memoizes a get_code probe result. Per SPEC_FULL §9's
// open question (preserved verbatim, see DESIGN.md), this memo is treated
// as permanent: a positive or negative result is never evicted even if the
// address later self-destructs.
func (c *Cache) PutIsSmartContract(networkID models.PrimaryId, checksummedAddress string, isContract bool) error {
	key := contractKey(networkID, checksummedAddress)
	value := []byte{0}
	if isContract {
		value[0] = 1
	}
	c.hot.set(key, value)
	return c.store.Put(key, value)
}

// IsSmartContract returns the memoized result, if any.
func (c *Cache) IsSmartContract(networkID models.PrimaryId, checksummedAddress string) (isContract bool, found bool, err error) {
	key := contractKey(networkID, checksummedAddress)
	if v, ok := c.hot.get(key); ok {
		return len(v) > 0 && v[0] == 1, true, nil
	}

	v, err := c.store.Get(key)
	if err == ErrNotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	c.hot.set(key, v)
	return len(v) > 0 && v[0] == 1, true, nil
}

func (c *Cache) Close() error {
	return c.store.Close()
}
