package position

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotTracked reports an operation against a pair with no open
// position in the book.
var ErrNotTracked = errors.New("no open position for pair")

// Position is one open spot holding under management. Its fields are
// mutated only through Advance and read through View/Record, which take
// the position's own lock, so the monitor job and the HTTP surface can
// share it.
type Position struct {
	mu sync.Mutex

	pair          string
	entry         decimal.Decimal
	amount        decimal.Decimal
	initialStop   decimal.Decimal
	stop          decimal.Decimal
	peak          decimal.Decimal
	trailingArmed bool
	atBreakeven   bool
	openedAt      time.Time
}

func New(pair string, entry, amount decimal.Decimal, rules Rules) *Position {
	stop := entry.Mul(decimal.NewFromInt(1).Sub(rules.StopLoss))
	return &Position{
		pair:        pair,
		entry:       entry,
		amount:      amount,
		initialStop: stop,
		stop:        stop,
		peak:        entry,
		openedAt:    time.Now(),
	}
}

func (p *Position) Pair() string { return p.pair }

func (p *Position) Amount() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.amount
}

// Record is the persisted form of a position.
type Record struct {
	Pair          string          `json:"pair"`
	Entry         decimal.Decimal `json:"entry"`
	Amount        decimal.Decimal `json:"amount"`
	InitialStop   decimal.Decimal `json:"initial_stop"`
	Stop          decimal.Decimal `json:"stop"`
	Peak          decimal.Decimal `json:"peak"`
	TrailingArmed bool            `json:"trailing_armed"`
	AtBreakeven   bool            `json:"at_breakeven"`
	OpenedAt      time.Time       `json:"opened_at"`
}

func (p *Position) Record() Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Record{
		Pair:          p.pair,
		Entry:         p.entry,
		Amount:        p.amount,
		InitialStop:   p.initialStop,
		Stop:          p.stop,
		Peak:          p.peak,
		TrailingArmed: p.trailingArmed,
		AtBreakeven:   p.atBreakeven,
		OpenedAt:      p.openedAt,
	}
}

// Validate rejects records that cannot be monitored: the rule math
// divides by entry and peak, so a zeroed record would crash the job.
func (r Record) Validate() error {
	if r.Pair == "" {
		return errors.New("record has no pair")
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"entry", r.Entry},
		{"amount", r.Amount},
		{"stop", r.Stop},
		{"peak", r.Peak},
	} {
		if !f.value.IsPositive() {
			return fmt.Errorf("record %s has non-positive %s %s", r.Pair, f.name, f.value)
		}
	}
	return nil
}

func FromRecord(r Record) *Position {
	return &Position{
		pair:          r.Pair,
		entry:         r.Entry,
		amount:        r.Amount,
		initialStop:   r.InitialStop,
		stop:          r.Stop,
		peak:          r.Peak,
		trailingArmed: r.TrailingArmed,
		atBreakeven:   r.AtBreakeven,
		openedAt:      r.OpenedAt,
	}
}

// Snapshot is the read model served by the HTTP API.
type Snapshot struct {
	Record
	Trailing        string          `json:"trailing"`
	ProfitPct       decimal.Decimal `json:"profit_pct"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	LastPrice       decimal.Decimal `json:"last_price"`
}

// View renders the position against the last seen price.
func (p *Position) View(rules Rules, last decimal.Decimal) Snapshot {
	rec := p.Record()
	snap := Snapshot{
		Record:          rec,
		Trailing:        "inactive",
		TakeProfitPrice: rec.Entry.Mul(decimal.NewFromInt(1).Add(rules.TakeProfitTarget)),
		LastPrice:       last,
	}
	if rec.TrailingArmed {
		snap.Trailing = "activated"
	}
	if last.IsPositive() && rec.Entry.IsPositive() {
		snap.ProfitPct = last.Sub(rec.Entry).Div(rec.Entry).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return snap
}

// Book tracks open positions by currency pair.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

func NewBook() *Book {
	return &Book{positions: make(map[string]*Position)}
}

// Put registers a position. It refuses to replace a live one: the old
// monitor would keep running against a record nothing owns anymore.
func (b *Book) Put(p *Position) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.positions[p.pair]; ok {
		return false
	}
	b.positions[p.pair] = p
	return true
}

func (b *Book) Get(pair string) (*Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[pair]
	return p, ok
}

// Take removes and returns the position in one step, claiming it for a
// close. Racing closers get false and must not sell.
func (b *Book) Take(pair string) (*Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[pair]
	if ok {
		delete(b.positions, pair)
	}
	return p, ok
}

func (b *Book) Remove(pair string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.positions, pair)
}

func (b *Book) List() []*Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}
