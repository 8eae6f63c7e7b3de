package election

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barreleye-go/indexer/internal/models"
)

// fakeStore is an in-memory configstore.Store good enough to drive the
// election CAS state machine without a MySQL backend.
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
	f.rows[key.String()] = models.Config{Key: key.String(), Value: value, UpdatedAt: now()}
	return nil
}

func (f *fakeStore) SetIfAbsent(_ context.Context, key models.ConfigKey, value string) (bool, error) {
	if _, ok := f.rows[key.String()]; ok {
		return false, nil
	}
	f.rows[key.String()] = models.Config{Key: key.String(), Value: value, UpdatedAt: now()}
	return true, nil
}

func (f *fakeStore) SetIfEqual(_ context.Context, key models.ConfigKey, value, prevValue string) (bool, error) {
	row, ok := f.rows[key.String()]
	if !ok || row.Value != prevValue {
		return false, nil
	}
	f.rows[key.String()] = models.Config{Key: key.String(), Value: value, UpdatedAt: now()}
	return true, nil
}

func (f *fakeStore) Delete(_ context.Context, key models.ConfigKey) error {
	delete(f.rows, key.String())
	return nil
}

func (f *fakeStore) GetManyByPrefix(context.Context, string) ([]models.Config, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func now() uint32 { return uint32(time.Now().Unix()) }

// TestPrimaryFailover implements spec.md §8's S6: R1 holds Primary, then
// goes silent past promotion_timeout; R2 CAS-takes-over and becomes primary
// on its next check-in, while R1 demotes on its next check-in once it
// observes the stored value no longer matches its own replica id.
func TestPrimaryFailover(t *testing.T) {
	store := newFakeStore()
	// promotion_timeout/ping_interval are forced to whole seconds here since
	// both the real and fake config stores timestamp rows at Unix-second
	// granularity; sub-second windows can't reliably cross a staleness
	// boundary.
	promotionTimeout := 2 * time.Second
	pingInterval := time.Second

	r1, err := New(store, "r1", promotionTimeout, pingInterval, nil, nil)
	require.NoError(t, err)
	r2, err := New(store, "r2", promotionTimeout, pingInterval, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, r1.CheckOnce(ctx))
	assert.False(t, r1.IsPrimary(), "claiming an absent row doesn't confirm primary until the next check-in")

	require.NoError(t, r1.CheckOnce(ctx))
	assert.True(t, r1.IsPrimary(), "r1 renews within its own cool-down window and becomes primary")

	// Simulate R1 going silent for longer than promotion_timeout.
	time.Sleep(promotionTimeout + time.Second)

	require.NoError(t, r2.CheckOnce(ctx))
	assert.False(t, r2.IsPrimary(), "a takeover attempt is only confirmed on the next check-in")

	row, found, err := store.Get(ctx, models.KeyPrimary())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "r2", row.Value, "r2's CAS takeover must have overwritten the stale primary row")

	require.NoError(t, r2.CheckOnce(ctx))
	assert.True(t, r2.IsPrimary(), "r2 becomes primary on its next check-in")

	require.NoError(t, r1.CheckOnce(ctx))
	assert.False(t, r1.IsPrimary(), "r1 demotes on its next check-in once it sees a value that isn't its own")
}

// TestElectorRequiresCooldownMargin checks the SPEC_FULL §4.5 invariant that
// promotion_timeout must be at least 2x ping_interval.
func TestElectorRequiresCooldownMargin(t *testing.T) {
	store := newFakeStore()
	_, err := New(store, "r1", 10*time.Millisecond, 10*time.Millisecond, nil, nil)
	assert.Error(t, err)
}
