// Package app wires every component into one running process: opens the
// warehouse, config store, registry, and cache; runs the primary-election
// loop, the tail/chunk/module scheduler, and the upstream propagator; and
// owns the networks map the scheduler and propagator both read.
//
// Grounded on the teacher's node package shape (a long-lived State plus a
// signal-driven supervisor loop in cmd/*/main.go), generalized from "start
// one blockchain node" to "start the indexer's three long-running loops
// and rebuild the networks map before every scheduler iteration."
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/barreleye-go/indexer/internal/cache"
	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/chain/account"
	"github.com/barreleye-go/indexer/internal/chain/utxo"
	"github.com/barreleye-go/indexer/internal/configstore"
	"github.com/barreleye-go/indexer/internal/election"
	"github.com/barreleye-go/indexer/internal/logging"
	"github.com/barreleye-go/indexer/internal/metrics"
	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/notify"
	"github.com/barreleye-go/indexer/internal/registry"
	"github.com/barreleye-go/indexer/internal/scheduler"
	"github.com/barreleye-go/indexer/internal/settings"
	"github.com/barreleye-go/indexer/internal/upstream"
	"github.com/barreleye-go/indexer/internal/warehouse"
)

// State is the fully wired process: every long-lived handle plus the
// current networks map and this replica's role.
type State struct {
	Settings *settings.Settings
	ReplicaID string

	Store     configstore.Store
	Registry  registry.Store
	Warehouse warehouse.Warehouse
	Cache     *cache.Cache
	Metrics   *metrics.Registry
	Log       *zap.Logger

	elector    *election.Elector
	scheduler  *scheduler.Coordinator
	propagator *upstream.Propagator

	networksMu sync.RWMutex
	networks   map[models.PrimaryId]chain.Adapter

	isPrimary atomicBool
	isReady   atomicBool
}

// New opens every backing store named in cfg and assembles a State. It does
// not start any loop; call Run for that.
func New(ctx context.Context, cfg *settings.Settings, log *zap.Logger) (*State, error) {
	store, err := configstore.Open(cfg.Dsn.Mysql)
	if err != nil {
		return nil, errors.Wrap(err, "app: open config store")
	}

	reg, err := registry.Open(cfg.Dsn.Mysql)
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "app: open registry")
	}

	wh, err := warehouse.NewClickhouse(ctx, cfg.Dsn.Clickhouse, cfg.Warehouse.Database)
	if err != nil {
		store.Close()
		reg.Close()
		return nil, errors.Wrap(err, "app: open warehouse")
	}

	cacheDir, err := settings.ResolveCacheDir(cfg.Cache.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "app: resolve cache dir")
	}
	var cacheStore cache.Store
	switch cfg.Cache.Driver {
	case "leveldb":
		cacheStore, err = cache.OpenLevelDB(cacheDir, 64, 256)
	default:
		cacheStore, err = cache.OpenBadger(cacheDir, log)
	}
	if err != nil {
		return nil, errors.Wrap(err, "app: open cache")
	}

	var notifier notify.CommitNotifier = notify.NoopNotifier{}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		kn, err := notify.NewKafkaNotifier(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, log)
		if err != nil {
			return nil, errors.Wrap(err, "app: open kafka notifier")
		}
		notifier = kn
	}

	reg2 := metrics.NewRegistry(prometheus.DefaultRegisterer)

	replicaID := uuid.New()
	s := &State{
		Settings:  cfg,
		ReplicaID: replicaID,
		Store:     store,
		Registry:  reg,
		Warehouse: wh,
		Cache:     cache.New(cacheStore, 32*1024*1024),
		Metrics:   reg2,
		Log:       log,
		networks:  map[models.PrimaryId]chain.Adapter{},
	}

	elector, err := election.New(store, replicaID, cfg.PromotionTimeout(), cfg.PingInterval(), s.setPrimary, log.Named("election"))
	if err != nil {
		return nil, err
	}
	s.elector = elector
	s.scheduler = scheduler.New(store, wh, notifier, reg2, log.Named("scheduler"))
	s.propagator = upstream.New(reg, store, wh, cfg.Env, log.Named("upstream"))

	return s, nil
}

// PingWarehouse satisfies httpserver.Prober.
func (s *State) PingWarehouse(ctx context.Context) error {
	return s.Warehouse.Ping(ctx)
}

// PingConfigStore satisfies httpserver.Prober.
func (s *State) PingConfigStore(ctx context.Context) error {
	_, _, err := s.Store.Get(ctx, models.KeyPrimary())
	return err
}

// IsPrimary reports this replica's last-known election result.
func (s *State) IsPrimary() bool { return s.isPrimary.Load() }

// IsReady reports whether the networks map has been populated at least
// once (SPEC_FULL §4.8's /readyz contract).
func (s *State) IsReady() bool { return s.isReady.Load() }

func (s *State) setPrimary(v bool) {
	s.isPrimary.Store(v)
}

// RefreshNetworks rebuilds the networks map from the registry, connecting
// any adapter that isn't already connected. Networks no longer active are
// dropped. The scheduler loop calls it before every iteration; the
// NetworksUpdated marker is not read, so a network-set change takes effect
// at the next iteration and does not interrupt the running one.
func (s *State) RefreshNetworks(ctx context.Context) error {
	active, err := s.Registry.GetActiveNetworks(ctx, s.Settings.Env)
	if err != nil {
		return errors.Wrap(err, "app: refresh networks")
	}

	next := make(map[models.PrimaryId]chain.Adapter, len(active))

	s.networksMu.RLock()
	existing := s.networks
	s.networksMu.RUnlock()

	for _, n := range active {
		if adapter, ok := existing[n.ID]; ok {
			next[n.ID] = adapter
			continue
		}

		endpoints := make([]chain.Endpoint, 0, len(n.RPCEndpoints))
		for _, raw := range n.RPCEndpoints {
			ep, err := chain.ParseEndpoint(raw)
			if err != nil {
				if s.Log != nil {
					s.Log.Warn("skipping unparseable endpoint", zap.Uint64("network_id", uint64(n.ID)), zap.Error(err))
				}
				continue
			}
			endpoints = append(endpoints, ep)
		}
		if len(endpoints) == 0 {
			continue
		}

		var adapter chain.Adapter
		switch n.Family {
		case models.FamilyUTXO:
			adapter = utxo.New(n.ID, endpoints, n.BlockTimeMs, int(n.RPS), s.Cache)
		case models.FamilyAccount:
			adapter = account.New(n.ID, endpoints, n.BlockTimeMs, int(n.RPS), s.Cache)
		default:
			continue
		}

		connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := adapter.Connect(connCtx)
		cancel()
		if err != nil {
			if s.Log != nil {
				s.Log.Warn("network connect failed, excluding this iteration", zap.Uint64("network_id", uint64(n.ID)), zap.Error(err))
			}
			continue
		}

		next[n.ID] = adapter
	}

	s.networksMu.Lock()
	s.networks = next
	s.networksMu.Unlock()

	s.isReady.Store(true)
	return nil
}

func (s *State) networksSnapshot() map[models.PrimaryId]chain.Adapter {
	s.networksMu.RLock()
	defer s.networksMu.RUnlock()
	out := make(map[models.PrimaryId]chain.Adapter, len(s.networks))
	for k, v := range s.networks {
		out[k] = v
	}
	return out
}

// Run starts the election loop and, while this replica is primary, the
// scheduler and upstream propagator loops. It blocks until ctx is
// cancelled, flushing and returning cleanly on cancellation (SPEC_FULL §5
// "on shutdown signal, the supervisor flushes, persists, and returns").
func (s *State) Run(ctx context.Context) error {
	logging.Banner(s.ReplicaID, s.IsPrimary(), 0)

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.elector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- errors.Wrap(err, "app: election loop")
		}
	}()

	if s.Settings.Role.IsIndexer {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.runSchedulerLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- errors.Wrap(err, "app: scheduler loop")
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.propagator.Run(ctx, s.IsPrimary); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- errors.Wrap(err, "app: upstream loop")
			}
		}()
	}

	wg.Wait()
	close(errCh)

	s.flush()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// runSchedulerLoop restarts RunIteration continuously, refreshing the
// networks map first; it only proceeds past the leading check when this
// replica is primary, matching SPEC_FULL §4.1's "leading" gate.
func (s *State) runSchedulerLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !s.IsPrimary() {
			if err := sleepCtx(ctx, time.Second); err != nil {
				return err
			}
			continue
		}

		if err := s.RefreshNetworks(ctx); err != nil {
			if s.Log != nil {
				s.Log.Warn("refresh networks failed", zap.Error(err))
			}
			if err := sleepCtx(ctx, time.Second); err != nil {
				return err
			}
			continue
		}

		if err := s.scheduler.RunIteration(ctx, s.networksSnapshot()); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if s.Log != nil {
				s.Log.Warn("indexing iteration failed", zap.Error(err))
			}
		}
	}
}

func (s *State) flush() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
	if s.Registry != nil {
		_ = s.Registry.Close()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// atomicBool is a Go-1.13-compatible boolean flag (sync/atomic.Bool is
// 1.19+); the go.mod here tracks the teacher's own language-version floor.
type atomicBool struct {
	v int32
}

func (b *atomicBool) Store(v bool) {
	n := int32(0)
	if v {
		n = 1
	}
	atomic.StoreInt32(&b.v, n)
}

func (b *atomicBool) Load() bool {
	return atomic.LoadInt32(&b.v) != 0
}
