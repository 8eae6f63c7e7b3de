// Package chain defines the per-chain adapter capability set (SPEC_FULL
// §4: connect, get_block_height, process_block, get_rate_limiter,
// format_address) shared by the utxo and account adapter variants, plus
// the scheduler-facing Pipe backpressure primitive.
package chain

import (
	"context"

	"github.com/barreleye-go/indexer/internal/models"
	"github.com/barreleye-go/indexer/internal/ratelimit"
	"github.com/barreleye-go/indexer/internal/warehouse"
)

// Batch is one task's local accumulator, handed to the coordinator through
// a Pipe push rather than shared across workers (SPEC_FULL §9,
// "coordinator/worker fan-out").
type Batch struct {
	Transfers []models.Transfer
	Amounts   []models.Amount
	Links     []models.Link
	Relations []models.Relation
}

func (b *Batch) Len() int {
	return len(b.Transfers) + len(b.Amounts) + len(b.Links) + len(b.Relations)
}

func (b *Batch) Merge(other Batch) {
	b.Transfers = append(b.Transfers, other.Transfers...)
	b.Amounts = append(b.Amounts, other.Amounts...)
	b.Links = append(b.Links, other.Links...)
	b.Relations = append(b.Relations, other.Relations...)
}

// DrainInto drains b into w, in transfers/amounts/links/relations order,
// leaving b empty.
func (b *Batch) DrainInto(w *warehouse.Batch) {
	w.AddTransfers(b.Transfers...)
	w.AddAmounts(b.Amounts...)
	w.AddLinks(b.Links...)
	w.AddRelations(b.Relations...)
	b.Transfers, b.Amounts, b.Links, b.Relations = nil, nil, nil, nil
}

// Adapter is the capability set every chain family implements
// (SPEC_FULL §9: "The chain interface is a capability set keyed by
// family").
type Adapter interface {
	Family() models.ChainFamily
	NetworkID() models.PrimaryId
	ModuleIDs() []models.ModuleId
	BlockTimeMs() uint64

	// Connect tries each configured endpoint in turn and pins the first
	// healthy one (SPEC_FULL §4.6).
	Connect(ctx context.Context) error

	GetBlockHeight(ctx context.Context) (models.BlockHeight, error)

	// ProcessBlock runs the given modules over one block. ok is false when
	// the chain doesn't yet have this height (SPEC_FULL §4.1, "not yet
	// available").
	ProcessBlock(ctx context.Context, height models.BlockHeight, modules []models.ModuleId) (batch Batch, ok bool, err error)

	FormatAddress(raw string) string

	RateLimiter() *ratelimit.Limiter
}
