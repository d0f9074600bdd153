package position

import "github.com/shopspring/decimal"

// Rules holds the exit thresholds, all fractions of the entry price
// (0.01 means 1%).
type Rules struct {
	StopLoss           decimal.Decimal // initial stop below entry
	BreakevenTrigger   decimal.Decimal // profit that moves the stop to entry
	TrailingActivation decimal.Decimal // profit that arms the trailing exit
	TrailingExit       decimal.Decimal // retracement from peak that closes
	TakeProfitTarget   decimal.Decimal // display target only, never an order
}

type ExitReason string

const (
	ExitNone     ExitReason = ""
	ExitStopLoss ExitReason = "stop_loss"
	ExitTrailing ExitReason = "trailing_take_profit"
	ExitManual   ExitReason = "manual"
)

// Outcome reports what a single price step did to the position.
type Outcome struct {
	Price            decimal.Decimal
	MovedToBreakeven bool
	TrailingArmed    bool
	Exit             ExitReason
}

func (o Outcome) ShouldExit() bool { return o.Exit != ExitNone }

// Advance applies one observed price. Rule order follows the live loop:
// stop first, then the breakeven move, then trailing arm, then the
// retracement check. The stop only ever moves up and the one-shot
// transitions (breakeven, arming) fire once.
func (p *Position) Advance(rules Rules, price decimal.Decimal) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Outcome{Price: price}
	if price.GreaterThan(p.peak) {
		p.peak = price
	}

	if price.LessThanOrEqual(p.stop) {
		out.Exit = ExitStopLoss
		return out
	}

	change := price.Sub(p.entry).Div(p.entry)

	if !p.atBreakeven && change.GreaterThanOrEqual(rules.BreakevenTrigger) {
		if p.entry.GreaterThan(p.stop) {
			p.stop = p.entry
		}
		p.atBreakeven = true
		out.MovedToBreakeven = true
	}

	if !p.trailingArmed && change.GreaterThanOrEqual(rules.TrailingActivation) {
		p.trailingArmed = true
		out.TrailingArmed = true
	}

	if p.trailingArmed {
		retracement := p.peak.Sub(price).Div(p.peak)
		if retracement.GreaterThanOrEqual(rules.TrailingExit) {
			out.Exit = ExitTrailing
			return out
		}
	}

	return out
}
