// Package batch runs a canonicalization strategy over the pending rows of
// the address table, committing one transaction per batch.
package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cif-address/internal/debug"
	"github.com/cif-address/internal/store"
)

// Store is the part of store.AddressStore the processor needs.
type Store interface {
	Pending(ctx context.Context, column string, afterSeq int64, limit int) ([]store.Record, error)
	CountPending(ctx context.Context, column string) (int, error)
	Update(ctx context.Context, column string, updates []store.Update) (int64, error)
}

// Outcome is what a strategy produced for one batch.
type Outcome struct {
	Updates    []store.Update
	Unresolved int // no postal code found
	Invalid    int // address was not text
	Skipped    int // no usable result, row left pending
}

// Strategy canonicalizes one batch of records.
type Strategy interface {
	Name() string
	Column() string
	Process(ctx context.Context, records []store.Record) (Outcome, error)
}

// Stats tracks one run.
type Stats struct {
	RunID         string
	Strategy      string
	Pending       int
	Batches       int
	FailedBatches int
	Selected      int
	Updated       int64
	Unresolved    int
	Invalid       int
	Skipped       int
	Duration      time.Duration
}

// Processor drives a strategy over the table.
type Processor struct {
	store     Store
	strategy  Strategy
	batchSize int
	limit     int
}

// NewProcessor creates a processor. A limit of zero or less means no limit.
func NewProcessor(s Store, strategy Strategy, batchSize, limit int) *Processor {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Processor{store: s, strategy: strategy, batchSize: batchSize, limit: limit}
}

// Run processes pending rows in id order until none are left, the limit is
// reached or ctx is cancelled. A batch the strategy fails on is logged and
// left pending; storage errors end the run.
func (p *Processor) Run(ctx context.Context, localDebug bool) (*Stats, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	start := time.Now()
	column := p.strategy.Column()
	stats := &Stats{RunID: uuid.NewString(), Strategy: p.strategy.Name()}
	defer func() { stats.Duration = time.Since(start) }()

	pending, err := p.store.CountPending(ctx, column)
	if err != nil {
		return stats, fmt.Errorf("failed to count pending rows: %w", err)
	}
	stats.Pending = pending
	debug.DebugOutput(localDebug, "run %s: %d rows pending for %s (batch size %d, limit %d)",
		stats.RunID, pending, column, p.batchSize, p.limit)

	var afterSeq int64
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		size := p.batchSize
		if p.limit > 0 {
			if stats.Selected >= p.limit {
				break
			}
			size = minInt(size, p.limit-stats.Selected)
		}

		records, err := p.store.Pending(ctx, column, afterSeq, size)
		if err != nil {
			return stats, fmt.Errorf("failed to read batch after %d: %w", afterSeq, err)
		}
		if len(records) == 0 {
			break
		}
		afterSeq = records[len(records)-1].Seq
		stats.Batches++
		stats.Selected += len(records)

		log.Printf("Processing batch %d, %d rows", stats.Batches, len(records))

		outcome, err := p.strategy.Process(ctx, records)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			log.Printf("Batch %d failed: %v", stats.Batches, err)
			stats.FailedBatches++
			continue
		}

		n, err := p.store.Update(ctx, column, outcome.Updates)
		if err != nil {
			return stats, fmt.Errorf("failed to commit batch %d: %w", stats.Batches, err)
		}
		stats.Updated += n
		stats.Unresolved += outcome.Unresolved
		stats.Invalid += outcome.Invalid
		stats.Skipped += outcome.Skipped

		debug.DebugOutput(localDebug, "Committed batch %d: %d updated, %d/%d rows selected",
			stats.Batches, n, stats.Selected, stats.Pending)
	}

	log.Printf("Run %s (%s) finished: %d rows updated in %d batches", stats.RunID, stats.Strategy, stats.Updated, stats.Batches)
	return stats, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
