package chain

import (
	"context"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// connectTimeout bounds both client construction and the first health
// probe (SPEC_FULL §5, "RPC client construction: 5 s").
const connectTimeout = 5 * time.Second

// healthCache memoizes which endpoint last answered healthy per network so
// a reconnect after a transient blip doesn't always re-probe from the top
// of the list. Capacity is generous: one entry per network is all this
// ever holds in practice, sized for a multi-hundred-network deployment.
var healthCache, _ = lru.New(4096)

// Endpoint is one configured RPC endpoint, already split into dial target
// and optional basic-auth credentials parsed from the URL userinfo
// (SPEC_FULL §6: "Endpoints may embed basic-auth in the URL userinfo").
type Endpoint struct {
	URL      string
	Username string
	Password string
}

// ParseEndpoint extracts basic-auth credentials from the URL userinfo, if
// present, leaving URL itself credential-free.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, errors.Wrapf(err, "chain: parse endpoint %q", raw)
	}

	ep := Endpoint{}
	if u.User != nil {
		ep.Username = u.User.Username()
		ep.Password, _ = u.User.Password()
		u.User = nil
	}
	ep.URL = u.String()
	return ep, nil
}

// Probe is a health check against one endpoint, implemented per adapter
// (get_block_height or equivalent).
type Probe func(ctx context.Context, ep Endpoint) error

// Connect tries the cached last-healthy endpoint first, then every
// endpoint in order, returning the first that answers within
// connectTimeout (SPEC_FULL §4.6). It caches the winner under cacheKey.
func Connect(ctx context.Context, cacheKey string, endpoints []Endpoint, probe Probe) (Endpoint, error) {
	if len(endpoints) == 0 {
		return Endpoint{}, errors.New("chain: no endpoints configured")
	}

	ordered := endpoints
	if cached, ok := healthCache.Get(cacheKey); ok {
		if idx, ok := cached.(int); ok && idx < len(endpoints) {
			ordered = append([]Endpoint{endpoints[idx]}, append(append([]Endpoint{}, endpoints[:idx]...), endpoints[idx+1:]...)...)
		}
	}

	for _, ep := range ordered {
		probeCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := probe(probeCtx, ep)
		cancel()
		if err == nil {
			for i, orig := range endpoints {
				if orig.URL == ep.URL {
					healthCache.Add(cacheKey, i)
					break
				}
			}
			return ep, nil
		}
	}

	return Endpoint{}, errors.Errorf("chain: no healthy endpoint among %d candidates", len(endpoints))
}
