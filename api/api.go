package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kidoescegh/gateiobot/exchange"
	"github.com/kidoescegh/gateiobot/position"
	"github.com/kidoescegh/gateiobot/trader"
)

// Bot is what the HTTP surface needs from the trader.
type Bot interface {
	Buy(ctx context.Context, ticker string, price decimal.Decimal) (position.Snapshot, error)
	Sell(ctx context.Context, ticker string) error
	ClosePosition(ctx context.Context, pair string, reason position.ExitReason) error
	Snapshots(ctx context.Context) []position.Snapshot
}

type Server struct {
	bot   Bot
	sugar *zap.SugaredLogger
}

func NewRouter(bot Bot, sugar *zap.SugaredLogger) *gin.Engine {
	s := &Server{bot: bot, sugar: sugar}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ping", s.HandlePing)
	r.POST("/webhook", s.HandleWebhook)
	r.GET("/positions", s.HandleListPositions)
	r.DELETE("/positions/:pair", s.HandleClosePosition)
	return r
}

func (s *Server) HandlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

type webhookRequest struct {
	Action string          `json:"action"`
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
}

// HandleWebhook receives TradingView-style signals:
// {"action": "buy", "ticker": "BTC/USDT", "price": 50000}
func (s *Server) HandleWebhook(c *gin.Context) {
	req := webhookRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed signal: " + err.Error()})
		return
	}
	s.sugar.Infof("webhook signal, [action: %s, ticker: %s, price: %s]", req.Action, req.Ticker, req.Price)

	switch req.Action {
	case "buy":
		snap, err := s.bot.Buy(c.Request.Context(), req.Ticker, req.Price)
		if err != nil {
			s.fail(c, err, "error placing buy order")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "buy order placed", "position": snap})
	case "sell":
		if err := s.bot.Sell(c.Request.Context(), req.Ticker); err != nil {
			s.fail(c, err, "error placing sell order")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "sell order placed"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid action specified"})
	}
}

func (s *Server) HandleListPositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.Snapshots(c.Request.Context()))
}

func (s *Server) HandleClosePosition(c *gin.Context) {
	pair := trader.NormalizePair(c.Param("pair"))
	if err := s.bot.ClosePosition(c.Request.Context(), pair, position.ExitManual); err != nil {
		s.fail(c, err, "error closing position")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position closed"})
}

func (s *Server) fail(c *gin.Context, err error, message string) {
	s.sugar.Warnf("%s: %v", message, err)
	if label, detail, ok := exchange.GateLabel(err); ok {
		c.JSON(http.StatusBadGateway, gin.H{"message": message, "error_label": label, "details": detail})
		return
	}
	c.JSON(statusFor(err), gin.H{"message": message, "details": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, trader.ErrPositionExists):
		return http.StatusConflict
	case errors.Is(err, trader.ErrBadTicker),
		errors.Is(err, trader.ErrInvalidPrice),
		errors.Is(err, trader.ErrInsufficientBalance),
		errors.Is(err, trader.ErrBelowMinimum),
		errors.Is(err, position.ErrNotTracked),
		errors.Is(err, exchange.ErrUnfilled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
