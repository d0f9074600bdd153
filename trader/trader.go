package trader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kidoescegh/gateiobot/config"
	"github.com/kidoescegh/gateiobot/exchange"
	"github.com/kidoescegh/gateiobot/job"
	"github.com/kidoescegh/gateiobot/journal"
	"github.com/kidoescegh/gateiobot/position"
)

var (
	ErrBadTicker           = errors.New("unusable ticker")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("balance below minimum order size")
	ErrPositionExists      = errors.New("position already open for pair")
)

// Exchange is the slice of the spot API the trader needs. *exchange.Spot
// satisfies it.
type Exchange interface {
	AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	PairRules(ctx context.Context, pair string) (exchange.PairRules, error)
	MarketBuy(ctx context.Context, pair string, quoteTotal decimal.Decimal) (string, error)
	MarketSell(ctx context.Context, pair string, amount decimal.Decimal) (string, error)
	AwaitFill(ctx context.Context, orderID, pair string, rules exchange.PairRules) (exchange.Fill, error)
	LastPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Trader owns the position book: it opens positions from webhook signals,
// spawns a monitor job per position, and is the single place positions
// get closed from, whether by rule, webhook or API call.
type Trader struct {
	ctx     context.Context // daemon root; monitor jobs live on it
	cfg     *config.Config
	ex      Exchange
	book    *position.Book
	journal *journal.Journal
	sugar   *zap.SugaredLogger

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
}

func New(ctx context.Context, cfg *config.Config, ex Exchange, jnl *journal.Journal, sugar *zap.SugaredLogger) *Trader {
	return &Trader{
		ctx:      ctx,
		cfg:      cfg,
		ex:       ex,
		book:     position.NewBook(),
		journal:  jnl,
		sugar:    sugar,
		watchers: make(map[string]context.CancelFunc),
	}
}

// NormalizePair turns a signal ticker like "btc/usdt" into the exchange
// form "BTC_USDT".
func NormalizePair(ticker string) string {
	pair := strings.ReplaceAll(ticker, "/", "_")
	pair = strings.ReplaceAll(pair, "-", "_")
	return strings.ToUpper(strings.TrimSpace(pair))
}

// Buy spends the whole available quote balance on pair at market, then
// puts the fill under management.
func (t *Trader) Buy(ctx context.Context, ticker string, price decimal.Decimal) (position.Snapshot, error) {
	pair := NormalizePair(ticker)
	if pair == "" || !strings.Contains(pair, "_") {
		return position.Snapshot{}, fmt.Errorf("ticker %q: %w", ticker, ErrBadTicker)
	}
	if !price.IsPositive() {
		return position.Snapshot{}, fmt.Errorf("price %s: %w", price, ErrInvalidPrice)
	}
	if _, ok := t.book.Get(pair); ok {
		return position.Snapshot{}, fmt.Errorf("%s: %w", pair, ErrPositionExists)
	}

	balance, err := t.ex.AvailableBalance(ctx, t.cfg.Quote)
	if err != nil {
		return position.Snapshot{}, err
	}
	if !balance.IsPositive() {
		return position.Snapshot{}, fmt.Errorf("%s balance is %s: %w", t.cfg.Quote, balance, ErrInsufficientBalance)
	}
	rules, err := t.ex.PairRules(ctx, pair)
	if err != nil {
		return position.Snapshot{}, err
	}
	if balance.LessThan(rules.MinQuoteAmount) {
		return position.Snapshot{}, fmt.Errorf("%s balance %s is less than minimum quote amount %s: %w",
			t.cfg.Quote, balance, rules.MinQuoteAmount, ErrBelowMinimum)
	}
	total := balance.RoundFloor(rules.PricePrecision)
	if !total.IsPositive() {
		return position.Snapshot{}, fmt.Errorf("%s total rounds to zero: %w", t.cfg.Quote, ErrInsufficientBalance)
	}

	t.sugar.Infof("buy signal %s, [signal price: %s, spend: %s %s]", pair, price, total, t.cfg.Quote)
	orderID, err := t.ex.MarketBuy(ctx, pair, total)
	if err != nil {
		return position.Snapshot{}, err
	}
	fill, err := t.ex.AwaitFill(ctx, orderID, pair, rules)
	if err != nil {
		return position.Snapshot{}, err
	}

	pos := position.New(pair, fill.Price, fill.BaseAmount, t.cfg.Rules)
	if !t.book.Put(pos) {
		// a concurrent buy for the same pair won the race: the fill sits
		// on the account untracked and needs a manual sell
		t.sugar.Errorf("duplicate buy filled for %s, [amount: %s] is not under management", pair, fill.BaseAmount)
		return position.Snapshot{}, fmt.Errorf("%s: %w", pair, ErrPositionExists)
	}
	rec := pos.Record()
	t.sugar.Infof("position opened %s, [entry: %s, amount: %s, stop: %s]", pair, rec.Entry, rec.Amount, rec.Stop)

	t.journal.SavePosition(ctx, rec)
	t.journal.PublishExecution(ctx, journal.Execution{
		Pair:      pair,
		Side:      "buy",
		Price:     fill.Price,
		Amount:    fill.BaseAmount,
		OrderID:   fill.OrderID,
		Timestamp: time.Now(),
	})

	t.watch(pos)
	return pos.View(t.cfg.Rules, fill.Price), nil
}

// Sell closes the tracked position for a signal ticker.
func (t *Trader) Sell(ctx context.Context, ticker string) error {
	return t.ClosePosition(ctx, NormalizePair(ticker), position.ExitManual)
}

// ClosePosition market-sells the position and drops it from the book.
// Monitor jobs land here too, so it must tolerate racing callers: Take
// claims the position atomically, the loser gets ErrNotTracked.
func (t *Trader) ClosePosition(ctx context.Context, pair string, reason position.ExitReason) error {
	pos, ok := t.book.Take(pair)
	if !ok {
		return fmt.Errorf("%s: %w", pair, position.ErrNotTracked)
	}
	rec := pos.Record()
	orderID, err := t.ex.MarketSell(ctx, pair, rec.Amount)
	if err != nil {
		// give the position back, the monitor retries on the next tick
		t.book.Put(pos)
		return err
	}

	// rule exits arrive on the watcher's own context and stopWatcher
	// cancels it, so the bookkeeping below must not inherit that cancel
	bg := context.WithoutCancel(ctx)
	t.stopWatcher(pair)
	t.journal.RemovePosition(bg, pair)

	exit, priceErr := t.ex.LastPrice(bg, pair)
	if priceErr != nil {
		t.sugar.Warnf("exit price for %s unavailable: %v", pair, priceErr)
		exit = decimal.Zero
	}
	t.journal.PublishExecution(bg, journal.Execution{
		Pair:      pair,
		Side:      "sell",
		Reason:    string(reason),
		Price:     exit,
		Amount:    rec.Amount,
		OrderID:   orderID,
		Timestamp: time.Now(),
	})
	summary := journal.Summary{
		Pair:      pair,
		Entry:     rec.Entry,
		Exit:      exit,
		Amount:    rec.Amount,
		Reason:    string(reason),
		OpenTime:  rec.OpenedAt,
		CloseTime: time.Now(),
	}
	if exit.IsPositive() && rec.Entry.IsPositive() {
		summary.ProfitPct = exit.Sub(rec.Entry).Div(rec.Entry).Mul(decimal.NewFromInt(100)).Round(2)
	}
	t.journal.PublishSummary(bg, summary)

	t.sugar.Infof("position closed %s, [reason: %s, entry: %s, exit: %s, amount: %s]",
		pair, reason, rec.Entry, exit, rec.Amount)
	return nil
}

// Resume reloads positions persisted by a previous run and puts each one
// back under a monitor.
func (t *Trader) Resume(ctx context.Context) error {
	records, err := t.journal.LoadOpen(ctx)
	if err != nil {
		return err
	}
	t.resume(records)
	return nil
}

func (t *Trader) resume(records []position.Record) {
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			t.sugar.Errorf("skip unresumable position: %v", err)
			continue
		}
		pos := position.FromRecord(rec)
		if !t.book.Put(pos) {
			continue
		}
		t.sugar.Infof("resumed position %s, [entry: %s, amount: %s, stop: %s]", rec.Pair, rec.Entry, rec.Amount, rec.Stop)
		t.watch(pos)
	}
}

// Snapshots renders the book against best-effort last prices, sorted by
// pair.
func (t *Trader) Snapshots(ctx context.Context) []position.Snapshot {
	positions := t.book.List()
	snaps := make([]position.Snapshot, 0, len(positions))
	for _, pos := range positions {
		last, err := t.ex.LastPrice(ctx, pos.Pair())
		if err != nil {
			t.sugar.Warnf("last price for %s: %v", pos.Pair(), err)
			last = decimal.Zero
		}
		snaps = append(snaps, pos.View(t.cfg.Rules, last))
	}
	sort.Slice(snaps, func(i, k int) bool { return snaps[i].Pair < snaps[k].Pair })
	return snaps
}

func (t *Trader) watch(pos *position.Position) {
	jobCtx, cancel := context.WithCancel(t.ctx)
	t.mu.Lock()
	t.watchers[pos.Pair()] = cancel
	t.mu.Unlock()
	j := job.New(pos, t.cfg.Rules, t.cfg.WSURL, t.cfg.Key, t.cfg.Secret, t, t.ex, t.journal, t.sugar)
	go j.Start(jobCtx)
}

func (t *Trader) stopWatcher(pair string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.watchers[pair]; ok {
		cancel()
		delete(t.watchers, pair)
	}
}
