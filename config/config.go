package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/kidoescegh/gateiobot/position"
)

const (
	DefaultListenAddr = ":5000"
	DefaultAPIURL     = "https://api.gateio.ws/api/v4"
	DefaultWSURL      = "wss://api.gateio.ws/ws/v4/"
	DefaultQuote      = "USDT"
)

// Config is assembled from the environment. Credentials live in a local
// .env file kept out of version control.
type Config struct {
	Key    string
	Secret string

	ListenAddr string
	APIURL     string
	WSURL      string
	RedisAddr  string
	Quote      string
	Debug      bool

	Rules position.Rules
}

// Load reads .env (when present) and the environment. envFile may be empty,
// in which case godotenv looks for ./.env.
func Load(envFile string) (*Config, error) {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	loaded := err == nil

	cfg := &Config{
		Key:        os.Getenv("GATE_API_KEY"),
		Secret:     os.Getenv("GATE_API_SECRET"),
		ListenAddr: getenv("LISTEN_ADDR", DefaultListenAddr),
		APIURL:     getenv("GATE_API_URL", DefaultAPIURL),
		WSURL:      getenv("GATE_WS_URL", DefaultWSURL),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		Quote:      getenv("QUOTE_CURRENCY", DefaultQuote),
		Debug:      os.Getenv("DEBUG") != "",
	}
	if cfg.Key == "" || cfg.Secret == "" {
		if !loaded {
			return nil, fmt.Errorf("GATE_API_KEY/GATE_API_SECRET not set and no .env file found")
		}
		return nil, fmt.Errorf("GATE_API_KEY and GATE_API_SECRET are required")
	}

	rules := position.Rules{}
	for _, p := range []struct {
		name string
		def  string
		dst  *decimal.Decimal
	}{
		{"STOP_LOSS_PCT", "0.01", &rules.StopLoss},
		{"BREAKEVEN_TRIGGER_PCT", "0.02", &rules.BreakevenTrigger},
		{"TRAILING_ACTIVATION_PCT", "0.04", &rules.TrailingActivation},
		{"TRAILING_EXIT_PCT", "0.02", &rules.TrailingExit},
		{"TAKE_PROFIT_TARGET_PCT", "0.04", &rules.TakeProfitTarget},
	} {
		d, err := decimal.NewFromString(getenv(p.name, p.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p.name, err)
		}
		if d.LessThanOrEqual(decimal.Zero) || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("%s must be a fraction in (0, 1), got %s", p.name, d)
		}
		*p.dst = d
	}
	cfg.Rules = rules
	return cfg, nil
}

func getenv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
