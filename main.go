package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kidoescegh/gateiobot/api"
	"github.com/kidoescegh/gateiobot/config"
	"github.com/kidoescegh/gateiobot/exchange"
	"github.com/kidoescegh/gateiobot/journal"
	"github.com/kidoescegh/gateiobot/trader"
)

var app *cli.App

var (
	envFlag = &cli.StringFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "path to the .env file holding the Gate.io credentials",
	}
	listenFlag = &cli.StringFlag{
		Name:    "listen",
		Aliases: []string{"l"},
		Usage:   "webhook listen address, overrides LISTEN_ADDR",
	}
)

func init() {
	app = &cli.App{
		Name:    filepath.Base(os.Args[0]),
		Usage:   "Gate.io webhook trading bot with automated stop loss and trailing take profit",
		Version: "1.0.0",
		Flags:   []cli.Flag{envFlag, listenFlag},
		Action:  run,
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String(envFlag.Name))
	if err != nil {
		return err
	}
	if addr := c.String(listenFlag.Name); addr != "" {
		cfg.ListenAddr = addr
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := c.Context
	spot := exchange.NewSpot(cfg.Key, cfg.Secret, cfg.APIURL, sugar)
	jnl := journal.Open(ctx, cfg.RedisAddr, sugar)
	defer jnl.Close()

	bot := trader.New(ctx, cfg, spot, jnl, sugar)
	if err := bot.Resume(ctx); err != nil {
		return fmt.Errorf("resume positions: %w", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewRouter(bot, sugar),
	}
	errCh := make(chan error, 1)
	go func() {
		sugar.Infof("webhook server listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sugar.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
