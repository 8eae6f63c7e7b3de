package scheduler

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barreleye-go/indexer/internal/chain"
	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/ratelimit"
)

// fakeStore is an in-memory configstore.Store good enough to exercise the
// scheduler's task-discovery and commit logic without a MySQL backend.
type fakeStore struct {
	rows map[string]models.Config
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]models.Config{}}
}

func (f *fakeStore) Get(_ context.Context, key models.ConfigKey) (models.Config, bool, error) {
	row, ok := f.rows[key.String()]
	return row, ok, nil
}

func (f *fakeStore) Set(_ context.Context, key models.ConfigKey, value string) error {
	f.rows[key.String()] = models.Config{Key: key.String(), Value: value}
	return nil
}

func (f *fakeStore) SetIfAbsent(_ context.Context, key models.ConfigKey, value string) (bool, error) {
	if _, ok := f.rows[key.String()]; ok {
		return false, nil
	}
	f.rows[key.String()] = models.Config{Key: key.String(), Value: value}
	return true, nil
}

func (f *fakeStore) SetIfEqual(_ context.Context, key models.ConfigKey, value, prevValue string) (bool, error) {
	row, ok := f.rows[key.String()]
	if !ok || row.Value != prevValue {
		return false, nil
	}
	f.rows[key.String()] = models.Config{Key: key.String(), Value: value}
	return true, nil
}

func (f *fakeStore) Delete(_ context.Context, key models.ConfigKey) error {
	delete(f.rows, key.String())
	return nil
}

func (f *fakeStore) GetManyByPrefix(_ context.Context, prefix string) ([]models.Config, error) {
	var out []models.Config
	for k, v := range f.rows {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

// fakeAdapter is a chain.Adapter stub with a fixed block height and module
// list, sufficient for task-discovery tests that never call ProcessBlock.
type fakeAdapter struct {
	family  models.ChainFamily
	nid     models.PrimaryId
	height  models.BlockHeight
	modules []models.ModuleId
	limiter *ratelimit.Limiter
}

func (a *fakeAdapter) Family() models.ChainFamily      { return a.family }
func (a *fakeAdapter) NetworkID() models.PrimaryId     { return a.nid }
func (a *fakeAdapter) ModuleIDs() []models.ModuleId    { return a.modules }
func (a *fakeAdapter) BlockTimeMs() uint64             { return 1000 }
func (a *fakeAdapter) Connect(context.Context) error   { return nil }
func (a *fakeAdapter) FormatAddress(raw string) string { return raw }
func (a *fakeAdapter) RateLimiter() *ratelimit.Limiter { return a.limiter }

func (a *fakeAdapter) GetBlockHeight(context.Context) (models.BlockHeight, error) {
	return a.height, nil
}

func (a *fakeAdapter) ProcessBlock(context.Context, models.BlockHeight, []models.ModuleId) (chain.Batch, bool, error) {
	return chain.Batch{}, false, nil
}

// TestFirstRunChunking implements SPEC_FULL §8 / spec.md §8's S1: a network
// with head = 100 and C = 4 splits, after one task-build pass, into chunk
// markers {(0,24),(25,49),(50,74),(75,98)}, a tail marker at 99, and every
// module flagged synced.
func TestFirstRunChunking(t *testing.T) {
	store := newFakeStore()
	nid := models.PrimaryId(1)
	adapter := &fakeAdapter{
		family:  models.FamilyAccount,
		nid:     nid,
		height:  100,
		modules: []models.ModuleId{models.ModuleAccountTransfer},
	}

	c := &Coordinator{store: store, numCPU: 4}

	specs, _, err := c.buildNetworkTasks(context.Background(), nid, adapter)
	require.NoError(t, err)

	tailRow, found, err := store.Get(context.Background(), models.KeyIndexerTailSync(nid))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "99", tailRow.Value)

	chunkRows, err := store.GetManyByPrefix(context.Background(), models.ChunkSyncPrefix(nid))
	require.NoError(t, err)

	var ranges []string
	for _, row := range chunkRows {
		ranges = append(ranges, row.Value)
	}
	sort.Strings(ranges)
	assert.Equal(t, []string{"0:24", "25:49", "50:74", "75:98"}, ranges)

	syncedRow, found, err := store.Get(context.Background(), models.KeyIndexerModuleSynced(nid, models.ModuleAccountTransfer))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", syncedRow.Value)

	// Task discovery reports the tail plus the four outstanding chunks;
	// every module is already synced so no module-catchup task appears.
	assert.Len(t, specs, 5)
}
