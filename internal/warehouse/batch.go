package warehouse

import (
	"context"
	"time"

	"github.com/barreleye-go/indexer/internal/models"
)

// Batch accumulates records from every running task before one atomic
// commit (SPEC_FULL §4.1). The coordinator drains each task's chain.Batch
// into it, checks ShouldCommit, and calls Commit.
type Batch struct {
	Transfers []models.Transfer
	Amounts   []models.Amount
	Links     []models.Link
	Relations []models.Relation

	lastCommit time.Time
}

// NewBatch returns an empty batch stamped with the current time as the
// commit clock's origin.
func NewBatch(now time.Time) *Batch {
	return &Batch{lastCommit: now}
}

func (b *Batch) AddTransfers(rows ...models.Transfer) { b.Transfers = append(b.Transfers, rows...) }
func (b *Batch) AddAmounts(rows ...models.Amount)     { b.Amounts = append(b.Amounts, rows...) }
func (b *Batch) AddLinks(rows ...models.Link)         { b.Links = append(b.Links, rows...) }
func (b *Batch) AddRelations(rows ...models.Relation) { b.Relations = append(b.Relations, rows...) }

// Len is the total record count across all four tables.
func (b *Batch) Len() int {
	return len(b.Transfers) + len(b.Amounts) + len(b.Links) + len(b.Relations)
}

// commitRecordThreshold and commitAgeThreshold implement SPEC_FULL §4.1's
// should_commit rule: size AND age, or an explicit flush.
const (
	commitRecordThreshold = 25000
	commitAgeThreshold    = 5 * time.Second
)

// ShouldCommit reports whether the size+age threshold has been crossed.
// The scheduler additionally commits when its task set drains and on
// cancellation, regardless of this result.
func (b *Batch) ShouldCommit(now time.Time) bool {
	return b.Len() > commitRecordThreshold && now.Sub(b.lastCommit) >= commitAgeThreshold
}

// Commit writes transfers, then amounts, then links, then relations, in
// that order, and resets the batch.
func (b *Batch) Commit(ctx context.Context, w Warehouse, now time.Time) error {
	if len(b.Transfers) > 0 {
		if err := w.InsertTransfers(ctx, b.Transfers); err != nil {
			return err
		}
	}
	if len(b.Amounts) > 0 {
		if err := w.InsertAmounts(ctx, b.Amounts); err != nil {
			return err
		}
	}
	if len(b.Links) > 0 {
		if err := w.InsertLinks(ctx, b.Links); err != nil {
			return err
		}
	}
	if len(b.Relations) > 0 {
		if err := w.InsertRelations(ctx, b.Relations); err != nil {
			return err
		}
	}

	b.Transfers = nil
	b.Amounts = nil
	b.Links = nil
	b.Relations = nil
	b.lastCommit = now
	return nil
}
