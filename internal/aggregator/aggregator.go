// Package aggregator combines the tracked accounts' equity into one
// converted total. Each tick replaces the published reading as a whole;
// readers never observe a partial update.
package aggregator

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"equity_monitor/internal/cache"
	"equity_monitor/internal/exchange"
	"equity_monitor/internal/fx"
	"equity_monitor/internal/models"
)

// exchangeIndex marks the exchange's breakdown entry; real accounts use
// snapshot positions from zero up.
const exchangeIndex = -1

// ExchangeSource is the optional exchange balance leg.
type ExchangeSource interface {
	Configured() bool
	GetBalance(ctx context.Context) (exchange.Balance, error)
}

// Aggregator computes and publishes equity ticks.
type Aggregator struct {
	snapshot *cache.SnapshotCache
	rates    *fx.Table
	exchange ExchangeSource
	indices  []int

	mu   sync.RWMutex
	last *models.EquityTick
	now  func() time.Time
}

// New creates an Aggregator over the given tracked snapshot indices.
// The exchange source may be nil.
func New(snapshot *cache.SnapshotCache, rates *fx.Table, exch ExchangeSource, indices []int) *Aggregator {
	return &Aggregator{
		snapshot: snapshot,
		rates:    rates,
		exchange: exch,
		indices:  indices,
		now:      time.Now,
	}
}

// Tick recomputes the combined equity reading and publishes it. Never
// returns an error: every failure degrades to a null contribution or a
// null total with an explanatory note.
func (a *Aggregator) Tick(ctx context.Context) models.EquityTick {
	tick := models.NewEquityTick(a.now(), a.rates.Target())

	accounts, err := a.snapshot.EnsureFresh(ctx)
	if err != nil {
		log.Printf("[Aggregator] snapshot unavailable: %v", err)
		tick.Note = "account snapshot unavailable"
		a.publish(tick)
		return tick
	}

	var (
		total         float64
		contributions int
	)

	for _, idx := range a.indices {
		contribution := models.Contribution{Index: idx}

		if idx < 0 || idx >= len(accounts) {
			contribution.Note = "unavailable"
			tick.Breakdown = append(tick.Breakdown, contribution)
			continue
		}

		account := accounts[idx]
		amount := account.Equity
		contribution.AccountID = account.ID
		contribution.Amount = &amount
		contribution.Currency = account.Currency

		converted, err := a.rates.Convert(amount, account.Currency)
		if err != nil {
			log.Printf("[Aggregator] no rate for %s, skipping account %d", account.Currency, account.ID)
			contribution.Note = "no conversion rate"
			tick.Breakdown = append(tick.Breakdown, contribution)
			continue
		}

		converted = round2(converted)
		contribution.Converted = &converted
		tick.Breakdown = append(tick.Breakdown, contribution)

		total += converted
		contributions++
	}

	if a.exchange != nil && a.exchange.Configured() {
		contribution := a.exchangeContribution(ctx)
		tick.Breakdown = append(tick.Breakdown, contribution)
		if contribution.Converted != nil {
			total += *contribution.Converted
			contributions++
		}
	}

	if contributions == 0 {
		tick.Note = "no contributions available"
	} else {
		combined := round2(total)
		tick.Total = &combined
	}

	a.publish(tick)
	return tick
}

// exchangeContribution fetches and converts the exchange balance.
// Failures degrade to a null contribution.
func (a *Aggregator) exchangeContribution(ctx context.Context) models.Contribution {
	contribution := models.Contribution{Index: exchangeIndex}

	balance, err := a.exchange.GetBalance(ctx)
	if err != nil {
		log.Printf("[Aggregator] exchange balance unavailable: %v", err)
		contribution.Note = "exchange unavailable"
		return contribution
	}

	amount := balance.Amount
	contribution.Amount = &amount
	contribution.Currency = balance.Currency

	converted, err := a.rates.Convert(balance.Amount, balance.Currency)
	if err != nil {
		log.Printf("[Aggregator] no rate for exchange currency %s", balance.Currency)
		contribution.Note = "no conversion rate"
		return contribution
	}

	converted = round2(converted)
	contribution.Converted = &converted
	return contribution
}

// publish atomically replaces the last reading.
func (a *Aggregator) publish(tick models.EquityTick) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = &tick
}

// Last returns the most recently published tick, or false before the
// first tick.
func (a *Aggregator) Last() (models.EquityTick, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return models.EquityTick{}, false
	}
	return *a.last, true
}

// round2 rounds to two decimal places for money display.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// SetClock overrides the aggregator's clock. Tests only.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}
