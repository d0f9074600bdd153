package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/antihax/optional"
	"github.com/gateio/gateapi-go/v6"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kidoescegh/gateiobot/util"
)

const (
	fillPollAttempts = 5
	fillPollInterval = time.Second
)

// ErrUnfilled is returned when a market order does not close within the
// polling window.
var ErrUnfilled = fmt.Errorf("order was not filled in time")

// PairRules are the sizing constraints of a currency pair.
type PairRules struct {
	MinBaseAmount   decimal.Decimal
	MinQuoteAmount  decimal.Decimal
	AmountPrecision int32
	PricePrecision  int32
}

// Fill describes a completed market order.
type Fill struct {
	OrderID     string
	Price       decimal.Decimal // average deal price
	BaseAmount  decimal.Decimal // base currency received/sold
	QuoteTotal  decimal.Decimal
	Fee         decimal.Decimal
	FeeCurrency string
}

// Spot wraps the SDK's SpotApi with decimal in/out and the bot's order
// conventions (market + IOC, t- prefixed text ids).
type Spot struct {
	client *gateapi.APIClient
	sugar  *zap.SugaredLogger
}

func NewSpot(key, secret, baseURL string, sugar *zap.SugaredLogger) *Spot {
	cfg := gateapi.NewConfiguration()
	cfg.Key = key
	cfg.Secret = secret
	client := gateapi.NewAPIClient(cfg)
	if baseURL != "" {
		client.ChangeBasePath(baseURL)
	}
	return &Spot{client: client, sugar: sugar}
}

// AvailableBalance returns the free balance of a currency, zero when the
// account has none.
func (s *Spot) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	accounts, _, err := s.client.SpotApi.ListSpotAccounts(ctx, &gateapi.ListSpotAccountsOpts{
		Currency: optional.NewString(currency),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list spot accounts: %w", wrapGateErr(err))
	}
	for _, account := range accounts {
		if account.Currency == currency {
			available, err := decimal.NewFromString(account.Available)
			if err != nil {
				return decimal.Zero, fmt.Errorf("parse available %q: %w", account.Available, err)
			}
			return available, nil
		}
	}
	return decimal.Zero, nil
}

func (s *Spot) PairRules(ctx context.Context, pair string) (PairRules, error) {
	market, _, err := s.client.SpotApi.GetCurrencyPair(ctx, pair)
	if err != nil {
		return PairRules{}, fmt.Errorf("get currency pair %s: %w", pair, wrapGateErr(err))
	}
	rules := PairRules{
		AmountPrecision: market.AmountPrecision,
		PricePrecision:  market.Precision,
	}
	if rules.MinBaseAmount, err = decimal.NewFromString(market.MinBaseAmount); err != nil {
		return PairRules{}, fmt.Errorf("parse min base amount %q: %w", market.MinBaseAmount, err)
	}
	if rules.MinQuoteAmount, err = decimal.NewFromString(market.MinQuoteAmount); err != nil {
		return PairRules{}, fmt.Errorf("parse min quote amount %q: %w", market.MinQuoteAmount, err)
	}
	s.sugar.Debugf("pair rules %s: [minBase: %s, minQuote: %s, amountPrec: %d, pricePrec: %d]",
		pair, rules.MinBaseAmount, rules.MinQuoteAmount, rules.AmountPrecision, rules.PricePrecision)
	return rules, nil
}

// MarketBuy spends quoteTotal of the quote currency on an IOC market
// order and returns the order id.
func (s *Spot) MarketBuy(ctx context.Context, pair string, quoteTotal decimal.Decimal) (string, error) {
	order, _, err := s.client.SpotApi.CreateOrder(ctx, gateapi.Order{
		Account:      "spot",
		Text:         fmt.Sprintf("t-%s", util.RandomID(10)),
		CurrencyPair: pair,
		Type:         "market",
		Side:         "buy",
		Amount:       quoteTotal.String(),
		TimeInForce:  "ioc",
	})
	if err != nil {
		return "", fmt.Errorf("create buy order %s: %w", pair, wrapGateErr(err))
	}
	s.sugar.Infof("buy order placed, [pair: %s, total: %s, id: %s]", pair, quoteTotal, order.Id)
	return order.Id, nil
}

// MarketSell sells amount of the base currency at market. The amount is
// floored to the pair's precision; when fees ate into the holding it
// falls back to the remaining balance rather than failing on dust.
func (s *Spot) MarketSell(ctx context.Context, pair string, amount decimal.Decimal) (string, error) {
	rules, err := s.PairRules(ctx, pair)
	if err != nil {
		return "", err
	}
	sized := amount.RoundFloor(rules.AmountPrecision)

	base := baseCurrency(pair)
	available, err := s.AvailableBalance(ctx, base)
	if err != nil {
		return "", err
	}
	sized, err = clampSellAmount(sized, amount, available)
	if err != nil {
		return "", fmt.Errorf("sell %s: %w", pair, err)
	}

	order, _, err := s.client.SpotApi.CreateOrder(ctx, gateapi.Order{
		Account:      "spot",
		Text:         fmt.Sprintf("t-%s", util.RandomID(10)),
		CurrencyPair: pair,
		Type:         "market",
		Side:         "sell",
		Amount:       sized.String(),
		TimeInForce:  "ioc",
	})
	if err != nil {
		return "", fmt.Errorf("create sell order %s: %w", pair, wrapGateErr(err))
	}
	s.sugar.Infof("sell order placed, [pair: %s, amount: %s, id: %s]", pair, sized, order.Id)
	return order.Id, nil
}

// AwaitFill polls the order until it closes.
func (s *Spot) AwaitFill(ctx context.Context, orderID, pair string, rules PairRules) (Fill, error) {
	for attempt := 0; attempt < fillPollAttempts; attempt++ {
		order, _, err := s.client.SpotApi.GetOrder(ctx, orderID, pair, nil)
		if err != nil {
			return Fill{}, fmt.Errorf("get order %s: %w", orderID, wrapGateErr(err))
		}
		if order.Status == "closed" {
			return fillFromOrder(order, rules)
		}
		select {
		case <-time.After(fillPollInterval):
		case <-ctx.Done():
			return Fill{}, ctx.Err()
		}
	}
	return Fill{}, ErrUnfilled
}

// LastPrice returns the last traded price of the pair.
func (s *Spot) LastPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	tickers, _, err := s.client.SpotApi.ListTickers(ctx, &gateapi.ListTickersOpts{
		CurrencyPair: optional.NewString(pair),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list tickers %s: %w", pair, wrapGateErr(err))
	}
	if len(tickers) == 0 {
		return decimal.Zero, fmt.Errorf("no ticker for %s", pair)
	}
	last, err := decimal.NewFromString(tickers[0].Last)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse last price %q: %w", tickers[0].Last, err)
	}
	return last, nil
}
