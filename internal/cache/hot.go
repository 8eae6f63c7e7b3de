package cache

import "github.com/VictoriaMetrics/fastcache"

// hotLayer is an in-process LRU-ish layer fronting the embedded Store, so
// repeated point lookups within one tail/chunk task don't round-trip
// through badger/goleveldb. SPEC_FULL §5's shared-resource rules note the is-smart-contract
// cache "may have benign races: double-fetches are acceptable, last-write-
// wins" — fastcache's lock-sharded design matches that tolerance exactly.
type hotLayer struct {
	fc *fastcache.Cache
}

func newHotLayer(maxBytes int) *hotLayer {
	return &hotLayer{fc: fastcache.New(maxBytes)}
}

func (h *hotLayer) get(key []byte) ([]byte, bool) {
	return h.fc.HasGet(nil, key)
}

func (h *hotLayer) set(key, value []byte) {
	h.fc.Set(key, value)
}
