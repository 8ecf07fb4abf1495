package offers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ofertas-ai/offers-cli/internal/model"
)

// RunSink receives completed runs for persistence.
type RunSink interface {
	SaveRun(ctx context.Context, run model.Run) error
}

// Orchestrator drives one search run at a time: a single discovery call
// seeds pending market records, then one detail call per market runs
// concurrently and each resolution updates exactly that record.
//
// The orchestrator is the sole writer of the run state. Every mutation is
// tagged with the run's generation; a new StartSearch bumps the generation
// and cancels the previous run's context, so late detail results from a
// superseded run fail the generation check and are dropped before touching
// state.
type Orchestrator struct {
	discoverer Discoverer
	details    DetailFetcher
	sink       RunSink

	mu      sync.Mutex
	gen     uint64
	state   model.RunState
	cancel  context.CancelFunc
	subs    map[uint64]chan model.RunState
	nextSub uint64
	dones   map[uint64]chan struct{}
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRunSink persists runs that reach the complete phase.
func WithRunSink(sink RunSink) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// NewOrchestrator creates an orchestrator over the given clients.
func NewOrchestrator(discoverer Discoverer, details DetailFetcher, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		discoverer: discoverer,
		details:    details,
		subs:       make(map[uint64]chan model.RunState),
		dones:      make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartSearch begins a new run for region, superseding any active run.
// It returns the new run's generation; progress is observed via Subscribe
// or Snapshot.
func (o *Orchestrator) StartSearch(ctx context.Context, region model.Region) uint64 {
	o.mu.Lock()
	o.gen++
	gen := o.gen
	if o.cancel != nil {
		o.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.dones[gen] = make(chan struct{})
	o.state = model.RunState{
		Region:  region,
		Phase:   model.PhaseDiscovering,
		Markets: []model.MarketRecord{},
	}
	o.publishLocked()
	o.mu.Unlock()

	zap.L().Info("search started",
		zap.Uint64("generation", gen),
		zap.String("state", region.State),
		zap.String("city", region.City),
	)

	go o.run(runCtx, gen, region)
	return gen
}

// Done returns a channel closed when the run for gen has finished all work,
// including persistence. Unknown generations return an already-closed channel.
func (o *Orchestrator) Done(gen uint64) <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.dones[gen]; ok {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Snapshot returns a deep copy of the current run state.
func (o *Orchestrator) Snapshot() model.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Subscribe registers a listener that receives a state snapshot on every
// mutation. The returned cancel func unregisters it and closes the channel.
// Delivery is latest-wins: a slow reader loses intermediate snapshots, never
// blocks the orchestrator.
func (o *Orchestrator) Subscribe() (<-chan model.RunState, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan model.RunState, 16)
	o.subs[id] = ch

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, region model.Region) {
	defer func() {
		o.mu.Lock()
		if ch, ok := o.dones[gen]; ok {
			close(ch)
			delete(o.dones, gen)
		}
		o.mu.Unlock()
	}()

	stubs, err := o.discoverer.Discover(ctx, region)
	if err != nil {
		o.mutate(gen, func(s *model.RunState) {
			s.Phase = model.PhaseDiscoveryFailed
			s.Error = err.Error()
			s.Markets = []model.MarketRecord{}
		})
		zap.L().Error("search discovery failed",
			zap.Uint64("generation", gen),
			zap.Error(err),
		)
		return
	}

	records := make([]model.MarketRecord, len(stubs))
	for i, stub := range stubs {
		records[i] = model.MarketRecord{
			ID:     stub.ID,
			Name:   stub.Name,
			Status: model.MarketStatusPending,
		}
	}
	if !o.mutate(gen, func(s *model.RunState) {
		s.Markets = records
		s.Phase = model.PhasePartial
	}) {
		return // superseded during discovery
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, stub := range stubs {
		stub := stub
		g.Go(func() error {
			payload := o.details.FetchDetails(gctx, stub, region)
			o.applyDetail(gen, stub.ID, payload)
			return nil
		})
	}
	_ = g.Wait()

	o.persistIfComplete(ctx, gen, region)
}

// applyDetail resolves one market record. Records only ever move out of
// pending, never back.
func (o *Orchestrator) applyDetail(gen uint64, marketID string, payload model.DetailPayload) {
	applied := o.mutate(gen, func(s *model.RunState) {
		for i := range s.Markets {
			m := &s.Markets[i]
			if m.ID != marketID || m.Status != model.MarketStatusPending {
				continue
			}
			m.Status = model.MarketStatusReady
			m.Tier = payload.Tier
			m.BadgeText = payload.BadgeText
			m.Savings = payload.Savings
			m.Validity = payload.Validity
			m.Link = payload.Link
			m.Products = payload.Products
			if m.Products == nil {
				m.Products = []model.ProductOffer{}
			}
			break
		}
		if s.Phase == model.PhasePartial && s.PendingCount() == 0 {
			s.Phase = model.PhaseComplete
		}
	})
	if !applied {
		zap.L().Debug("dropped stale detail result",
			zap.Uint64("generation", gen),
			zap.String("market_id", marketID),
		)
	}
}

// mutate applies fn to the run state and publishes a snapshot, unless gen
// has been superseded. Returns whether the mutation was applied.
func (o *Orchestrator) mutate(gen uint64, fn func(*model.RunState)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return false
	}
	fn(&o.state)
	o.publishLocked()
	return true
}

// publishLocked fans the current state out to subscribers. Caller holds mu;
// sends stay ordered because they happen under the same lock as mutations.
func (o *Orchestrator) publishLocked() {
	snap := o.state.Clone()
	for _, ch := range o.subs {
		select {
		case ch <- snap:
		default:
			// Full buffer: drop the oldest snapshot to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (o *Orchestrator) persistIfComplete(ctx context.Context, gen uint64, region model.Region) {
	if o.sink == nil {
		return
	}

	o.mu.Lock()
	current := gen == o.gen && o.state.Phase == model.PhaseComplete
	snap := o.state.Clone()
	o.mu.Unlock()
	if !current {
		return
	}

	run := model.Run{
		ID:        uuid.NewString(),
		Region:    region,
		RegionKey: RegionKey(region),
		State:     snap,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.sink.SaveRun(ctx, run); err != nil {
		zap.L().Warn("failed to persist run",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("run persisted",
		zap.String("run_id", run.ID),
		zap.String("region_key", run.RegionKey),
	)
}
