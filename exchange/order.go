package exchange

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gateio/gateapi-go/v6"
	"github.com/shopspring/decimal"
)

// fillFromOrder derives the fill from a closed order. Market buy orders
// report their size in quote currency, so the base amount comes from
// filled_total / fill_price, floored to the pair's amount precision.
func fillFromOrder(order gateapi.Order, rules PairRules) (Fill, error) {
	fill := Fill{
		OrderID:     order.Id,
		Fee:         decimal.Zero,
		FeeCurrency: order.FeeCurrency,
	}
	var err error
	if fill.Price, err = decimal.NewFromString(order.FillPrice); err != nil {
		return Fill{}, fmt.Errorf("parse fill price %q: %w", order.FillPrice, err)
	}
	if fill.QuoteTotal, err = decimal.NewFromString(order.FilledTotal); err != nil {
		return Fill{}, fmt.Errorf("parse filled total %q: %w", order.FilledTotal, err)
	}
	if order.Fee != "" {
		if fill.Fee, err = decimal.NewFromString(order.Fee); err != nil {
			return Fill{}, fmt.Errorf("parse fee %q: %w", order.Fee, err)
		}
	}
	if fill.Price.IsZero() {
		return Fill{}, fmt.Errorf("order %s closed with zero deal price", order.Id)
	}
	fill.BaseAmount = fill.QuoteTotal.Div(fill.Price).RoundFloor(rules.AmountPrecision)
	if order.Side == "buy" && order.FeeCurrency == baseFromID(order.CurrencyPair) {
		// the fee was taken from the coins we just bought
		fill.BaseAmount = fill.BaseAmount.Sub(fill.Fee).RoundFloor(rules.AmountPrecision)
	}
	return fill, nil
}

// clampSellAmount reconciles the requested sell size with the balance
// actually left on the account. Fee dust shrinks the holding slightly
// below the recorded amount; that gap is tolerated, anything bigger is
// refused.
var sellDustTolerance = decimal.NewFromFloat(0.005)

func clampSellAmount(sized, requested, available decimal.Decimal) (decimal.Decimal, error) {
	if available.GreaterThanOrEqual(sized) {
		return sized, nil
	}
	if !available.IsPositive() {
		return decimal.Zero, fmt.Errorf("insufficient balance, available %s, required %s", available, sized)
	}
	shortfall := sized.Sub(available)
	if shortfall.LessThanOrEqual(requested.Mul(sellDustTolerance)) {
		return available, nil
	}
	return decimal.Zero, fmt.Errorf("insufficient balance, available %s, required %s", available, sized)
}

func baseCurrency(pair string) string {
	return baseFromID(pair)
}

func baseFromID(pair string) string {
	if i := strings.Index(pair, "_"); i > 0 {
		return pair[:i]
	}
	return pair
}

// GateLabel extracts the exchange's error label and message when err
// originated from the Gate API.
func GateLabel(err error) (label, message string, ok bool) {
	var gerr gateapi.GateAPIError
	if errors.As(err, &gerr) {
		return gerr.Label, gerr.Message, true
	}
	return "", "", false
}

func wrapGateErr(err error) error {
	var gerr gateapi.GateAPIError
	if errors.As(err, &gerr) {
		return fmt.Errorf("[%s] %s: %w", gerr.Label, gerr.Message, err)
	}
	return err
}
