package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gateio/gateapi-go/v6"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kidoescegh/gateiobot/position"
	"github.com/kidoescegh/gateiobot/trader"
)

type fakeBot struct {
	buyErr    error
	sellErr   error
	bought    []string
	sold      []string
	closed    []string
	snapshots []position.Snapshot
}

func (f *fakeBot) Buy(_ context.Context, ticker string, price decimal.Decimal) (position.Snapshot, error) {
	if f.buyErr != nil {
		return position.Snapshot{}, f.buyErr
	}
	f.bought = append(f.bought, fmt.Sprintf("%s@%s", ticker, price))
	return position.Snapshot{Record: position.Record{Pair: trader.NormalizePair(ticker)}}, nil
}

func (f *fakeBot) Sell(_ context.Context, ticker string) error {
	if f.sellErr != nil {
		return f.sellErr
	}
	f.sold = append(f.sold, ticker)
	return nil
}

func (f *fakeBot) ClosePosition(_ context.Context, pair string, _ position.ExitReason) error {
	if f.sellErr != nil {
		return f.sellErr
	}
	f.closed = append(f.closed, pair)
	return nil
}

func (f *fakeBot) Snapshots(context.Context) []position.Snapshot {
	return f.snapshots
}

func serve(t *testing.T, bot Bot, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := NewRouter(bot, zap.NewNop().Sugar())
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := serve(t, &fakeBot{}, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestWebhookBuy(t *testing.T) {
	bot := &fakeBot{}
	w := serve(t, bot, http.MethodPost, "/webhook",
		`{"action":"buy","ticker":"BTC/USDT","price":50000}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, bot.bought, 1)
	assert.Equal(t, "BTC/USDT@50000", bot.bought[0])
	assert.Contains(t, w.Body.String(), "buy order placed")
}

func TestWebhookBuyStringPrice(t *testing.T) {
	bot := &fakeBot{}
	w := serve(t, bot, http.MethodPost, "/webhook",
		`{"action":"buy","ticker":"BTC/USDT","price":"50000.5"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, bot.bought, 1)
	assert.Equal(t, "BTC/USDT@50000.5", bot.bought[0])
}

func TestWebhookSell(t *testing.T) {
	bot := &fakeBot{}
	w := serve(t, bot, http.MethodPost, "/webhook",
		`{"action":"sell","ticker":"BTC/USDT"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"BTC/USDT"}, bot.sold)
}

func TestWebhookInvalidAction(t *testing.T) {
	w := serve(t, &fakeBot{}, http.MethodPost, "/webhook",
		`{"action":"hodl","ticker":"BTC/USDT","price":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid action")
}

func TestWebhookMalformedBody(t *testing.T) {
	w := serve(t, &fakeBot{}, http.MethodPost, "/webhook", `{"action":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid price", trader.ErrInvalidPrice, http.StatusBadRequest},
		{"bad ticker", trader.ErrBadTicker, http.StatusBadRequest},
		{"insufficient balance", trader.ErrInsufficientBalance, http.StatusBadRequest},
		{"below minimum", trader.ErrBelowMinimum, http.StatusBadRequest},
		{"duplicate position", trader.ErrPositionExists, http.StatusConflict},
		{"gate error", gateapi.GateAPIError{Label: "BALANCE_NOT_ENOUGH", Message: "not enough"}, http.StatusBadGateway},
		{"unknown", fmt.Errorf("exchange on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bot := &fakeBot{buyErr: fmt.Errorf("buy: %w", tc.err)}
			w := serve(t, bot, http.MethodPost, "/webhook",
				`{"action":"buy","ticker":"BTC/USDT","price":50000}`)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestWebhookSellUntracked(t *testing.T) {
	bot := &fakeBot{sellErr: fmt.Errorf("BTC_USDT: %w", position.ErrNotTracked)}
	w := serve(t, bot, http.MethodPost, "/webhook",
		`{"action":"sell","ticker":"BTC/USDT"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPositions(t *testing.T) {
	bot := &fakeBot{snapshots: []position.Snapshot{
		{Record: position.Record{Pair: "BTC_USDT"}, Trailing: "activated"},
	}}
	w := serve(t, bot, http.MethodGet, "/positions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BTC_USDT")
	assert.Contains(t, w.Body.String(), "activated")
}

func TestClosePositionEndpoint(t *testing.T) {
	bot := &fakeBot{}
	w := serve(t, bot, http.MethodDelete, "/positions/btc-usdt", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"BTC_USDT"}, bot.closed)
}
