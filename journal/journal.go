package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kidoescegh/gateiobot/position"
)

const (
	executionChannel = "gatebot.executions"
	summaryChannel   = "gatebot.summaries"
	positionsKey     = "gatebot.positions"

	opTimeout = 3 * time.Second
)

// Execution is published for every order the bot places.
type Execution struct {
	Pair      string          `json:"pair"`
	Side      string          `json:"side"` // buy or sell
	Reason    string          `json:"reason,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	OrderID   string          `json:"order_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Summary is published when a position closes.
type Summary struct {
	Pair      string          `json:"pair"`
	Entry     decimal.Decimal `json:"entry"`
	Exit      decimal.Decimal `json:"exit"`
	Amount    decimal.Decimal `json:"amount"`
	ProfitPct decimal.Decimal `json:"profit_pct"`
	Reason    string          `json:"reason"`
	OpenTime  time.Time       `json:"open_time"`
	CloseTime time.Time       `json:"close_time"`
}

// Journal persists open positions and publishes trade events over Redis.
// A Journal with no backing client is valid and does nothing, so the bot
// runs fine without Redis configured.
type Journal struct {
	rdb   *redis.Client
	sugar *zap.SugaredLogger
}

// Open connects to Redis at addr. An empty addr or a failed ping yields a
// disabled journal, not an error: persistence is an add-on, the bot's job
// is trading.
func Open(ctx context.Context, addr string, sugar *zap.SugaredLogger) *Journal {
	j := &Journal{sugar: sugar}
	if addr == "" {
		return j
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		sugar.Warnf("redis unreachable at %s, journal disabled: %v", addr, err)
		_ = rdb.Close()
		return j
	}
	j.rdb = rdb
	sugar.Infof("journal connected to redis at %s", addr)
	return j
}

func (j *Journal) Enabled() bool { return j != nil && j.rdb != nil }

func (j *Journal) Close() {
	if j.Enabled() {
		_ = j.rdb.Close()
	}
}

// SavePosition upserts the persisted form of an open position.
func (j *Journal) SavePosition(ctx context.Context, rec position.Record) {
	if !j.Enabled() {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		j.sugar.Errorf("marshal position %s: %v", rec.Pair, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := j.rdb.HSet(ctx, positionsKey, rec.Pair, data).Err(); err != nil {
		j.sugar.Errorf("save position %s: %v", rec.Pair, err)
	}
}

func (j *Journal) RemovePosition(ctx context.Context, pair string) {
	if !j.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := j.rdb.HDel(ctx, positionsKey, pair).Err(); err != nil {
		j.sugar.Errorf("remove position %s: %v", pair, err)
	}
}

// LoadOpen returns the positions persisted by a previous run.
func (j *Journal) LoadOpen(ctx context.Context) ([]position.Record, error) {
	if !j.Enabled() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	raw, err := j.rdb.HGetAll(ctx, positionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	records := make([]position.Record, 0, len(raw))
	for pair, data := range raw {
		var rec position.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			j.sugar.Errorf("skip corrupt position record %s: %v", pair, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (j *Journal) PublishExecution(ctx context.Context, exec Execution) {
	j.publish(ctx, executionChannel, exec)
}

func (j *Journal) PublishSummary(ctx context.Context, summary Summary) {
	j.publish(ctx, summaryChannel, summary)
}

func (j *Journal) publish(ctx context.Context, topic string, v interface{}) {
	if !j.Enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		j.sugar.Errorf("marshal journal event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := j.rdb.Publish(ctx, topic, data).Err(); err != nil {
		j.sugar.Errorf("publish to %s: %v", topic, err)
	}
}
