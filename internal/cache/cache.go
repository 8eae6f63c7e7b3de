// Package cache is the local embedded key/value layer (SPEC_FULL §3): point
// lookups, write-mostly, fronting a hot in-process layer. It caches the
// UTXO tx-index (network_id, txid) -> block_height and the account chain's
// (network_id, address) -> is_smart_contract.
//
// Driver selection and the embedded-store shape are grounded on the
// teacher's storage/database/{badger_database.go,leveldb_database.go}: two
// interchangeable embedded drivers behind one Store interface, badger as
// the default and goleveldb as the alternate.
package cache

// Store is the byte-oriented embedded key/value contract both drivers
// satisfy, mirroring the teacher's database.Database Put/Get/Has/Delete
// surface (trimmed to what the cache layer actually needs).
type Store interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Close() error
}

// ErrNotFound is returned by Get when the key is absent, unifying the two
// drivers' distinct not-found errors (badger.ErrKeyNotFound vs
// leveldb.ErrNotFound).
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "cache: key not found" }
