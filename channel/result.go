package channel

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type OrderResult []Order

type GateMessage struct {
	Time    int64       `json:"time"`
	TimeMS  int64       `json:"time_ms"`
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Error   *GateError  `json:"error,omitempty"`
	Result  interface{} `json:"result"`
}

type GateError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *GateError) Error() string {
	return fmt.Sprintf("gate ws error %d: %s", e.Code, e.Message)
}

func (m *GateMessage) ParseResult() ([]byte, error) {
	return json.Marshal(m.Result)
}

type Ticker struct {
	CurrencyPair     string          `json:"currency_pair"`
	Last             decimal.Decimal `json:"last"`
	LowestAsk        decimal.Decimal `json:"lowest_ask"`
	HighestBid       decimal.Decimal `json:"highest_bid"`
	ChangePercentage decimal.Decimal `json:"change_percentage"`
	BaseVolume       decimal.Decimal `json:"base_volume"`
	QuoteVolume      decimal.Decimal `json:"quote_volume"`
	High24H          decimal.Decimal `json:"high_24h"`
	Low24H           decimal.Decimal `json:"low_24h"`
}

type Order struct {
	Id           string          `json:"id,omitempty"`             // Order ID
	User         int64           `json:"user"`                     // User ID
	Text         string          `json:"text,omitempty"`           // User defined information, `t-` prefixed
	CreateTimeMS string          `json:"create_time_ms,omitempty"` // Order creation time in milliseconds
	UpdateTimeMS string          `json:"update_time_ms,omitempty"` // Order last modification time in milliseconds
	Event        string          `json:"event,omitempty"`          // put: order creation - update: order fill update - finish: order closed or cancelled
	CurrencyPair string          `json:"currency_pair"`
	Type         string          `json:"type,omitempty"`    // limit or market
	Account      string          `json:"account,omitempty"` // spot - spot account; margin - margin account
	Side         string          `json:"side"`              // buy or sell
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	TimeInForce  string          `json:"time_in_force,omitempty"` // gtc, ioc or poc
	Left         decimal.Decimal `json:"left,omitempty"`          // Amount left to fill
	FilledTotal  decimal.Decimal `json:"filled_total,omitempty"`  // Total filled in quote currency
	AvgDealPrice decimal.Decimal `json:"avg_deal_price"`
	Fee          decimal.Decimal `json:"fee,omitempty"`
	FeeCurrency  string          `json:"fee_currency,omitempty"`
}
