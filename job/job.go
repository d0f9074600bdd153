package job

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kidoescegh/gateiobot/channel"
	"github.com/kidoescegh/gateiobot/journal"
	"github.com/kidoescegh/gateiobot/position"
)

const (
	beatInterval   = 30 * time.Second
	resyncInterval = time.Minute
	minBackoff     = time.Second
	maxBackoff     = 30 * time.Second
	healthyConnAge = time.Minute
)

// Seller closes a monitored position. Implemented by the trader.
type Seller interface {
	ClosePosition(ctx context.Context, pair string, reason position.ExitReason) error
}

// PriceSource is the REST fallback for quiet markets.
type PriceSource interface {
	LastPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Job watches one open position over the websocket ticker feed and
// applies the exit rules on every price it sees.
type Job struct {
	pos     *position.Position
	rules   position.Rules
	wsURL   string
	key     string
	secret  string
	seller  Seller
	prices  PriceSource
	journal *journal.Journal
	sugar   *zap.SugaredLogger
}

func New(pos *position.Position, rules position.Rules, wsURL, key, secret string,
	seller Seller, prices PriceSource, jnl *journal.Journal, sugar *zap.SugaredLogger) *Job {
	return &Job{
		pos:     pos,
		rules:   rules,
		wsURL:   wsURL,
		key:     key,
		secret:  secret,
		seller:  seller,
		prices:  prices,
		journal: jnl,
		sugar:   sugar,
	}
}

// Start blocks until the position exits or ctx is cancelled. Feed drops
// redial with capped backoff; the position stays under management the
// whole time.
func (j *Job) Start(ctx context.Context) {
	pair := j.pos.Pair()
	j.sugar.Infof("started monitoring position for %s", pair)
	backoff := minBackoff
	for ctx.Err() == nil {
		started := time.Now()
		done, err := j.run(ctx)
		if done {
			j.sugar.Infof("stopped monitoring %s", pair)
			return
		}
		backoff = nextBackoff(backoff, time.Since(started))
		if err != nil {
			j.sugar.Warnf("market feed for %s dropped: %v, redialing in %s", pair, err, backoff)
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

// nextBackoff doubles the redial delay on quick failures and drops back
// to the minimum once a connection held long enough to count as healthy.
func nextBackoff(backoff, connectedFor time.Duration) time.Duration {
	if connectedFor >= healthyConnAge {
		return minBackoff
	}
	if backoff *= 2; backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

func (j *Job) run(ctx context.Context) (bool, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, j.wsURL, nil)
	if err != nil {
		return false, err
	}
	defer ws.Close()
	if err := j.subscribe(ws); err != nil {
		return false, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go j.beat(runCtx, ws)
	go func() {
		// unblocks the pending read when the job is told to stop
		<-runCtx.Done()
		ws.Close()
	}()

	priceCh := make(chan decimal.Decimal, 1)
	errCh := make(chan error, 1)
	go j.listen(ws, priceCh, errCh)
	go j.resync(runCtx, priceCh)

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case err := <-errCh:
			return false, err
		case price := <-priceCh:
			if closed := j.step(ctx, price); closed {
				return true, nil
			}
		}
	}
}

func (j *Job) subscribe(ws *websocket.Conn) error {
	t := time.Now().Unix()
	tickersMsg := channel.NewMsg(channel.SpotChannelTickers, channel.SpotChannelEventSubscribe, t, []string{j.pos.Pair()})
	if err := tickersMsg.Send(ws); err != nil {
		return err
	}
	ordersMsg := channel.NewMsg(channel.SpotChannelOrders, channel.SpotChannelEventSubscribe, t, []string{j.pos.Pair()})
	ordersMsg.Sign(j.key, j.secret)
	return ordersMsg.Send(ws)
}

func (j *Job) beat(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(beatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t := time.Now().Unix()
			pingMsg := channel.NewMsg(channel.SpotChannelPing, "", t, []string{})
			if err := pingMsg.Send(ws); err != nil {
				j.sugar.Warnf("job beat with ping err %v", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (j *Job) listen(ws *websocket.Conn, priceCh chan<- decimal.Decimal, errCh chan<- error) {
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		gateMessage := channel.GateMessage{}
		if err := json.Unmarshal(message, &gateMessage); err != nil {
			j.sugar.Warnf("skip malformed feed message: %v", err)
			continue
		}
		j.handleMessage(&gateMessage, priceCh)
	}
}

func (j *Job) handleMessage(message *channel.GateMessage, priceCh chan<- decimal.Decimal) {
	if message.Error != nil {
		j.sugar.Warnf("feed declined %s %s: %v", message.Channel, message.Event, message.Error)
		return
	}
	if message.Event != channel.SpotChannelEventUpdate {
		return
	}
	result, err := message.ParseResult()
	if err != nil {
		j.sugar.Warnf("parse %s result: %v", message.Channel, err)
		return
	}
	switch message.Channel {
	case channel.SpotChannelTickers:
		ticker := channel.Ticker{}
		if err := json.Unmarshal(result, &ticker); err != nil {
			j.sugar.Warnf("unmarshal ticker: %v", err)
			return
		}
		if ticker.CurrencyPair != j.pos.Pair() || !ticker.Last.IsPositive() {
			return
		}
		select {
		case priceCh <- ticker.Last:
		default: // a fresher tick is already queued
		}
	case channel.SpotChannelOrders:
		orderResult := make(channel.OrderResult, 0)
		if err := json.Unmarshal(result, &orderResult); err != nil {
			j.sugar.Warnf("unmarshal orders: %v", err)
			return
		}
		for _, order := range orderResult {
			if order.CurrencyPair != j.pos.Pair() || order.Event != channel.SpotChannelOrdersEventFinish {
				continue
			}
			if order.Left.GreaterThan(decimal.Zero) {
				j.sugar.Infof("order [%s]-[%s] was cancelled, [price: %s, amount: %s/%s]",
					order.Text, order.Side, order.Price, order.Left, order.Amount)
				continue
			}
			j.sugar.Infof("order [%s]-[%s] was closed, [price: %s, amount: %s, fee: %s/%s]",
				order.Text, order.Side, order.AvgDealPrice, order.Amount, order.Fee, order.FeeCurrency)
		}
	}
}

func (j *Job) resync(ctx context.Context, priceCh chan<- decimal.Decimal) {
	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			price, err := j.prices.LastPrice(ctx, j.pos.Pair())
			if err != nil {
				j.sugar.Warnf("resync price for %s: %v", j.pos.Pair(), err)
				continue
			}
			select {
			case priceCh <- price:
			default:
			}
		case <-ctx.Done():
			return
		}
	}
}

// step runs the exit rules against one price. Reports true when the
// position left the book.
func (j *Job) step(ctx context.Context, price decimal.Decimal) bool {
	pair := j.pos.Pair()
	outcome := j.pos.Advance(j.rules, price)

	if outcome.MovedToBreakeven {
		j.sugar.Infof("%s gained past the breakeven trigger, stop moved to entry", pair)
	}
	if outcome.TrailingArmed {
		j.sugar.Infof("%s reached the activation profit, trailing take profit armed", pair)
	}
	if outcome.MovedToBreakeven || outcome.TrailingArmed {
		j.journal.SavePosition(ctx, j.pos.Record())
	}

	rec := j.pos.Record()
	j.sugar.Debugf("%s [last: %s, entry: %s, stop: %s, peak: %s, trailing: %v]",
		pair, price, rec.Entry, rec.Stop, rec.Peak, rec.TrailingArmed)

	if !outcome.ShouldExit() {
		return false
	}
	j.sugar.Infof("%s hit %s at %s, selling", pair, outcome.Exit, price)
	if err := j.seller.ClosePosition(ctx, pair, outcome.Exit); err != nil {
		if errors.Is(err, position.ErrNotTracked) {
			return true
		}
		j.sugar.Errorf("close %s after %s: %v, keeping watch", pair, outcome.Exit, err)
		return false
	}
	return true
}
