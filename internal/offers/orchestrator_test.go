package offers

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ofertas-ai/offers-cli/internal/model"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func threeStubs() []model.MarketStub {
	return []model.MarketStub{
		{ID: "1", Name: "A"},
		{ID: "2", Name: "B"},
		{ID: "3", Name: "C"},
	}
}

func readyPayload(products ...model.ProductOffer) model.DetailPayload {
	return model.DetailPayload{
		Tier:      model.TierCheap,
		BadgeText: "Melhor Preço",
		Savings:   "10%",
		Validity:  "Válido hoje",
		Link:      "https://example.com.br/ofertas",
		Products:  products,
	}
}

func marketByID(s model.RunState, id string) model.MarketRecord {
	for _, m := range s.Markets {
		if m.ID == id {
			return m
		}
	}
	return model.MarketRecord{}
}

func TestOrchestrator_ProgressiveEnrichment(t *testing.T) {
	details := newGatedDetails()
	details.gate("1", FallbackPayload()) // transport failure absorbed upstream
	details.gate("2", readyPayload(
		model.ProductOffer{Category: model.CategoryGrocery, Name: "Arroz 5kg", Price: "24,90"},
		model.ProductOffer{Category: model.CategoryBeverage, Name: "Suco 1L", Price: "6,50"},
	))
	details.gate("3", FallbackPayload()) // zero items absorbed upstream

	o := NewOrchestrator(&fakeDiscoverer{stubs: threeStubs()}, details)
	o.StartSearch(context.Background(), testRegion)

	// Placeholders appear before any detail resolves, in discovery order.
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhasePartial
	}, waitFor, tick)
	snap := o.Snapshot()
	require.Len(t, snap.Markets, 3)
	for i, id := range []string{"1", "2", "3"} {
		assert.Equal(t, id, snap.Markets[i].ID)
		assert.Equal(t, model.MarketStatusPending, snap.Markets[i].Status)
	}

	// B resolves first: only record 2 leaves pending.
	details.release("2")
	require.Eventually(t, func() bool {
		return marketByID(o.Snapshot(), "2").Status == model.MarketStatusReady
	}, waitFor, tick)
	snap = o.Snapshot()
	assert.Equal(t, model.PhasePartial, snap.Phase)
	assert.Equal(t, model.MarketStatusPending, marketByID(snap, "1").Status)
	assert.Equal(t, model.MarketStatusPending, marketByID(snap, "3").Status)
	assert.Len(t, marketByID(snap, "2").Products, 2)

	details.release("1")
	details.release("3")
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhaseComplete
	}, waitFor, tick)

	snap = o.Snapshot()
	require.Len(t, snap.Markets, 3)
	for _, m := range snap.Markets {
		assert.Equal(t, model.MarketStatusReady, m.Status)
	}
	assert.Empty(t, marketByID(snap, "1").Products)
	assert.Equal(t, FallbackBadgeText, marketByID(snap, "1").BadgeText)
	assert.Len(t, marketByID(snap, "2").Products, 2)
	assert.Empty(t, marketByID(snap, "3").Products)
	// Order never changes during enrichment.
	assert.Equal(t, []string{"1", "2", "3"}, []string{snap.Markets[0].ID, snap.Markets[1].ID, snap.Markets[2].ID})
}

func TestOrchestrator_DiscoveryFailure(t *testing.T) {
	disc := &fakeDiscoverer{err: &DiscoveryError{Err: eris.New("upstream timeout")}}
	o := NewOrchestrator(disc, &instantDetails{payload: readyPayload()})

	o.StartSearch(context.Background(), testRegion)
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhaseDiscoveryFailed
	}, waitFor, tick)

	snap := o.Snapshot()
	assert.Empty(t, snap.Markets)
	assert.Contains(t, snap.Error, "upstream timeout")

	// A retry performs a fresh discovery, no caching of the failed attempt.
	disc.err = nil
	disc.stubs = threeStubs()
	o.StartSearch(context.Background(), testRegion)
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhaseComplete
	}, waitFor, tick)
	assert.Len(t, o.Snapshot().Markets, 3)
	assert.Empty(t, o.Snapshot().Error)
}

func TestOrchestrator_NewSearchSupersedesInFlightRun(t *testing.T) {
	details := newGatedDetails()
	details.gate("1", readyPayload())
	details.gate("2", readyPayload())
	details.gate("3", readyPayload())
	details.set("10", readyPayload(model.ProductOffer{Category: model.CategoryProduce, Name: "Banana kg", Price: "4,99"}))

	disc := &fakeDiscoverer{stubs: threeStubs()}
	o := NewOrchestrator(disc, details)

	o.StartSearch(context.Background(), model.Region{State: "SP", City: "Campinas"})
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhasePartial
	}, waitFor, tick)

	// Second search begins before any of the first run's details resolve.
	disc.stubs = []model.MarketStub{{ID: "10", Name: "Novo Mercado"}}
	o.StartSearch(context.Background(), model.Region{State: "RJ", City: "Niterói"})
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhaseComplete
	}, waitFor, tick)

	// Late arrivals from the superseded run must not mutate current state.
	details.release("1")
	details.release("2")
	details.release("3")
	time.Sleep(50 * time.Millisecond)

	snap := o.Snapshot()
	assert.Equal(t, "Niterói", snap.Region.City)
	require.Len(t, snap.Markets, 1)
	assert.Equal(t, "10", snap.Markets[0].ID)
	assert.Equal(t, model.MarketStatusReady, snap.Markets[0].Status)
}

func TestOrchestrator_SubscriberSeesPerMarketTransitions(t *testing.T) {
	details := newGatedDetails()
	details.gate("1", readyPayload())
	details.gate("2", readyPayload())
	details.gate("3", readyPayload())

	o := NewOrchestrator(&fakeDiscoverer{stubs: threeStubs()}, details)
	ch, cancel := o.Subscribe()
	defer cancel()

	o.StartSearch(context.Background(), testRegion)
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhasePartial
	}, waitFor, tick)
	for _, id := range []string{"2", "3", "1"} {
		details.release(id)
		require.Eventually(t, func() bool {
			return marketByID(o.Snapshot(), id).Status == model.MarketStatusReady
		}, waitFor, tick)
	}

	var sawOnlySecondReady bool
	deadline := time.After(waitFor)
	for {
		var snap model.RunState
		select {
		case snap = <-ch:
		case <-deadline:
			t.Fatal("never observed the intermediate single-ready snapshot")
		}
		if marketByID(snap, "2").Status == model.MarketStatusReady &&
			marketByID(snap, "1").Status == model.MarketStatusPending &&
			marketByID(snap, "3").Status == model.MarketStatusPending {
			sawOnlySecondReady = true
		}
		if snap.Phase == model.PhaseComplete {
			break
		}
	}
	assert.True(t, sawOnlySecondReady)
}

func TestOrchestrator_SnapshotIsIsolatedCopy(t *testing.T) {
	o := NewOrchestrator(&fakeDiscoverer{stubs: threeStubs()}, &instantDetails{payload: readyPayload(
		model.ProductOffer{Category: model.CategoryGrocery, Name: "Café 500g", Price: "18,90"},
	)})
	o.StartSearch(context.Background(), testRegion)
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhaseComplete
	}, waitFor, tick)

	snap := o.Snapshot()
	snap.Markets[0].Name = "mutated"
	snap.Markets[0].Products[0].Price = "0,00"

	fresh := o.Snapshot()
	assert.Equal(t, "A", fresh.Markets[0].Name)
	assert.Equal(t, "18,90", fresh.Markets[0].Products[0].Price)
}

func TestOrchestrator_PersistsCompleteRuns(t *testing.T) {
	sink := &memorySink{}
	o := NewOrchestrator(
		&fakeDiscoverer{stubs: threeStubs()},
		&instantDetails{payload: readyPayload()},
		WithRunSink(sink),
	)
	o.StartSearch(context.Background(), model.Region{State: "SP", City: "São Paulo"})
	require.Eventually(t, func() bool {
		return len(sink.saved()) == 1
	}, waitFor, tick)

	run := sink.saved()[0]
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "sp/sao paulo", run.RegionKey)
	assert.Equal(t, model.PhaseComplete, run.State.Phase)
	assert.Len(t, run.State.Markets, 3)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestOrchestrator_DoneClosesAfterPersistence(t *testing.T) {
	sink := &memorySink{}
	o := NewOrchestrator(
		&fakeDiscoverer{stubs: threeStubs()},
		&instantDetails{payload: readyPayload()},
		WithRunSink(sink),
	)
	gen := o.StartSearch(context.Background(), testRegion)

	select {
	case <-o.Done(gen):
	case <-time.After(waitFor):
		t.Fatal("run never finished")
	}
	assert.Len(t, sink.saved(), 1)
	assert.Equal(t, model.PhaseComplete, o.Snapshot().Phase)

	// Unknown generations are already done.
	select {
	case <-o.Done(gen + 100):
	default:
		t.Fatal("unknown generation should be closed")
	}
}

func TestOrchestrator_DoesNotPersistDiscoveryFailure(t *testing.T) {
	sink := &memorySink{}
	o := NewOrchestrator(
		&fakeDiscoverer{err: &DiscoveryError{Err: eris.New("down")}},
		&instantDetails{payload: readyPayload()},
		WithRunSink(sink),
	)
	o.StartSearch(context.Background(), testRegion)
	require.Eventually(t, func() bool {
		return o.Snapshot().Phase == model.PhaseDiscoveryFailed
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.saved())
}
