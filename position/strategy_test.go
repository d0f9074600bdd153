package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() Rules {
	return Rules{
		StopLoss:           decimal.RequireFromString("0.01"),
		BreakevenTrigger:   decimal.RequireFromString("0.02"),
		TrailingActivation: decimal.RequireFromString("0.04"),
		TrailingExit:       decimal.RequireFromString("0.02"),
		TakeProfitTarget:   decimal.RequireFromString("0.04"),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewPositionInitialStop(t *testing.T) {
	p := New("BTC_USDT", dec("100"), dec("2"), testRules())
	rec := p.Record()
	assert.True(t, rec.Stop.Equal(dec("99")), "stop should sit 1%% below entry, got %s", rec.Stop)
	assert.True(t, rec.Peak.Equal(dec("100")))
	assert.False(t, rec.TrailingArmed)
	assert.False(t, rec.AtBreakeven)
}

func TestAdvanceStopLoss(t *testing.T) {
	rules := testRules()
	p := New("BTC_USDT", dec("100"), dec("2"), rules)

	out := p.Advance(rules, dec("99.5"))
	assert.False(t, out.ShouldExit())

	out = p.Advance(rules, dec("99"))
	require.True(t, out.ShouldExit())
	assert.Equal(t, ExitStopLoss, out.Exit)
}

func TestAdvanceBreakevenMovesStopOnce(t *testing.T) {
	rules := testRules()
	p := New("BTC_USDT", dec("100"), dec("2"), rules)

	out := p.Advance(rules, dec("102"))
	require.True(t, out.MovedToBreakeven)
	require.True(t, p.Record().Stop.Equal(dec("100")))

	// does not fire twice and the stop stays at entry
	out = p.Advance(rules, dec("102.5"))
	assert.False(t, out.MovedToBreakeven)
	assert.True(t, p.Record().Stop.Equal(dec("100")))

	// a fall back to entry now exits at breakeven
	out = p.Advance(rules, dec("100"))
	require.True(t, out.ShouldExit())
	assert.Equal(t, ExitStopLoss, out.Exit)
}

func TestAdvanceTrailingExit(t *testing.T) {
	rules := testRules()
	p := New("BTC_USDT", dec("100"), dec("2"), rules)

	out := p.Advance(rules, dec("104"))
	require.True(t, out.TrailingArmed)
	require.True(t, out.MovedToBreakeven, "4%% jump passes the breakeven trigger too")

	// new peak, no exit on a shallow dip
	out = p.Advance(rules, dec("110"))
	require.False(t, out.ShouldExit())
	out = p.Advance(rules, dec("109"))
	require.False(t, out.ShouldExit())
	assert.True(t, p.Record().Peak.Equal(dec("110")), "peak must not decrease")

	// 2% off the 110 peak closes the position
	out = p.Advance(rules, dec("107.8"))
	require.True(t, out.ShouldExit())
	assert.Equal(t, ExitTrailing, out.Exit)
}

func TestAdvanceArmsOnlyOnce(t *testing.T) {
	rules := testRules()
	p := New("BTC_USDT", dec("100"), dec("2"), rules)

	out := p.Advance(rules, dec("105"))
	require.True(t, out.TrailingArmed)
	out = p.Advance(rules, dec("106"))
	assert.False(t, out.TrailingArmed)
}

func TestAdvanceStopWinsOverTrailing(t *testing.T) {
	rules := testRules()
	p := New("BTC_USDT", dec("100"), dec("2"), rules)
	p.Advance(rules, dec("105"))

	// a crash straight through the (breakeven) stop reports stop loss,
	// not a trailing exit, matching the rule order of the live loop
	out := p.Advance(rules, dec("95"))
	require.True(t, out.ShouldExit())
	assert.Equal(t, ExitStopLoss, out.Exit)
}

func TestAdvancePeakTracksHighs(t *testing.T) {
	rules := testRules()
	p := New("BTC_USDT", dec("100"), dec("2"), rules)
	for _, s := range []string{"100.5", "101", "100.2", "103", "102"} {
		p.Advance(rules, dec(s))
	}
	assert.True(t, p.Record().Peak.Equal(dec("103")))
}

func TestViewProfitAndTarget(t *testing.T) {
	rules := testRules()
	p := New("BTC_USDT", dec("200"), dec("1"), rules)
	snap := p.View(rules, dec("210"))
	assert.True(t, snap.ProfitPct.Equal(dec("5")), "got %s", snap.ProfitPct)
	assert.True(t, snap.TakeProfitPrice.Equal(dec("208")))
	assert.Equal(t, "inactive", snap.Trailing)

	p.Advance(rules, dec("210"))
	snap = p.View(rules, dec("210"))
	assert.Equal(t, "activated", snap.Trailing)
}

func TestRecordRoundTrip(t *testing.T) {
	rules := testRules()
	p := New("ETH_USDT", dec("3000"), dec("0.5"), rules)
	p.Advance(rules, dec("3150"))

	restored := FromRecord(p.Record())
	require.Equal(t, p.Record(), restored.Record())

	// restored position still exits where the original would
	out := restored.Advance(rules, dec("2990"))
	assert.Equal(t, ExitStopLoss, out.Exit)
}
