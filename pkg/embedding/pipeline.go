package embedding

import (
	"context"
	"log/slog"

	"github.com/nodespace/core/internal/store"
)

// defaultBatchSize bounds how many stale roots a single claim pulls off the
// queue, mirroring the batch-sized claim pattern the teacher's extraction
// pipeline uses for LLM calls rather than processing one item per round
// trip.
const defaultBatchSize = 16

// Processor is the embedding pipeline's background half (C11): it claims
// stale root aggregates, reassembles their canonical text, calls out to a
// Provider, and writes the resulting vector back. It implements
// nodeservice.EmbeddingWaker so the node service can nudge it without
// either package importing the other's concrete types.
type Processor struct {
	store     store.Store
	provider  Provider
	log       *slog.Logger
	wake      chan struct{}
	batchSize int
}

// NewProcessor builds a Processor over st. provider may be nil, in which
// case Run still drains the stale/orphan queues but Embed calls fail fast —
// useful for wiring tests that only exercise the stale/orphan bookkeeping.
func NewProcessor(st store.Store, provider Provider, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		store:     st,
		provider:  provider,
		log:       log,
		wake:      make(chan struct{}, 1),
		batchSize: defaultBatchSize,
	}
}

// Wake nudges the processor to run a pass. Non-blocking: if a wake is
// already pending, this is a no-op, since one pending signal is enough to
// guarantee the next pass sees every root marked stale up to that point.
func (p *Processor) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run processes batches until ctx is canceled. It never polls: aside from
// one pass at startup (to pick up work queued before Run was called), every
// subsequent pass is driven by a Wake.
func (p *Processor) Run(ctx context.Context) error {
	p.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
			p.runPass(ctx)
		}
	}
}

// runPass drains every currently-claimable stale root and sweeps orphaned
// vectors once. Errors are logged and swallowed — a single bad root (e.g. a
// transient provider failure) must not stall the rest of the queue or crash
// the background loop; the root stays marked stale and is retried on the
// next wake.
func (p *Processor) runPass(ctx context.Context) {
	var failed []string
	defer func() {
		for _, id := range failed {
			if err := p.store.MarkRootStale(ctx, id); err != nil {
				p.log.Warn("embedding: failed to release claim", "root_id", id, "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ids, err := p.store.ClaimStaleRoots(ctx, p.batchSize)
		if err != nil {
			p.log.Warn("embedding: failed to claim stale roots", "error", err)
			return
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			if err := p.processRoot(ctx, id); err != nil {
				p.log.Warn("embedding: failed to process root", "root_id", id, "error", err)
				failed = append(failed, id)
			}
		}
	}

	p.sweepOrphans(ctx)
}
