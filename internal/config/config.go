package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	CORSAllowOrigin   string `json:"cors_allow_origin"`
}

type Holding struct {
	AmountBTC            float64 `json:"amount_btc"`
	InitialInvestmentUSD float64 `json:"initial_investment_usd"`
	// PurchaseDate is the day the holding was bought, YYYY-MM-DD. It is also
	// the start of the rendered price history.
	PurchaseDate string `json:"purchase_date"`
}

type Upstream struct {
	// Provider selects the quote source: "gateway" (the in-house proxy,
	// synthetic history) or "cryptocompare" (real daily history).
	Provider string `json:"provider"`

	GatewayURL string `json:"gateway_url"`

	CryptoCompareURL    string `json:"cryptocompare_url"`
	CryptoCompareAPIKey string `json:"cryptocompare_api_key"`

	CoinMarketCapAPIKey string `json:"coinmarketcap_api_key"`

	MinRequestIntervalSec int `json:"min_request_interval_sec"`
}

type Cache struct {
	TTLMinutes int `json:"ttl_minutes"`
}

type Synth struct {
	// AnchorPrices are coarse known price levels at roughly quarterly
	// granularity, oldest first. Empty means a flat fallback series.
	AnchorPrices []float64 `json:"anchor_prices"`
}

type Poll struct {
	IntervalSeconds int `json:"interval_seconds"`
}

type Config struct {
	Server   Server   `json:"server"`
	Holding  Holding  `json:"holding"`
	Upstream Upstream `json:"upstream"`
	Cache    Cache    `json:"cache"`
	Synth    Synth    `json:"synth"`
	Poll     Poll     `json:"poll"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:              "3001",
			RequestTimeoutSec: 10,
			CORSAllowOrigin:   "*",
		},
		Holding: Holding{
			AmountBTC:            0.01,
			InitialInvestmentUSD: 500,
			PurchaseDate:         "2023-08-11",
		},
		Upstream: Upstream{
			Provider:              "gateway",
			GatewayURL:            "http://localhost:3001",
			CryptoCompareURL:      "https://min-api.cryptocompare.com/data",
			MinRequestIntervalSec: 0,
		},
		Cache: Cache{TTLMinutes: 10},
		Synth: Synth{
			AnchorPrices: []float64{29400, 34500, 43000, 61000, 67000, 95000, 104000},
		},
		Poll: Poll{IntervalSeconds: 30},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. A .env file and environment variables override
// select fields so credentials stay out of the config file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []string

	switch c.Upstream.Provider {
	case "gateway", "cryptocompare":
	default:
		errs = append(errs, fmt.Sprintf("unknown upstream provider %q", c.Upstream.Provider))
	}
	if c.Upstream.Provider == "gateway" && c.Upstream.GatewayURL == "" {
		errs = append(errs, "GATEWAY_URL is required for the gateway provider")
	}
	if _, err := c.Holding.Date(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid purchase date: %v", err))
	}
	if c.Holding.AmountBTC <= 0 {
		errs = append(errs, "AMOUNT_OF_BITCOIN must be positive")
	}
	if c.Cache.TTLMinutes <= 0 {
		errs = append(errs, "CACHE_TTL_MINUTES must be positive")
	}
	if c.Poll.IntervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Date parses the configured purchase date.
func (h Holding) Date() (time.Time, error) {
	return time.Parse("2006-01-02", h.PurchaseDate)
}

func (c Cache) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func (p Poll) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && v > 0 {
		cfg.Server.RequestTimeoutSec = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGIN"); v != "" {
		cfg.Server.CORSAllowOrigin = v
	}

	if v, ok := envFloat("AMOUNT_OF_BITCOIN"); ok {
		cfg.Holding.AmountBTC = v
	}
	if v, ok := envFloat("INITIAL_INVESTMENT"); ok {
		cfg.Holding.InitialInvestmentUSD = v
	}
	if v := os.Getenv("PURCHASE_DATE"); v != "" {
		cfg.Holding.PurchaseDate = v
	}

	if v := os.Getenv("UPSTREAM_PROVIDER"); v != "" {
		cfg.Upstream.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.Upstream.GatewayURL = v
	}
	if v := os.Getenv("CRYPTOCOMPARE_URL"); v != "" {
		cfg.Upstream.CryptoCompareURL = v
	}
	if v := os.Getenv("CRYPTOCOMPARE_API_KEY"); v != "" {
		cfg.Upstream.CryptoCompareAPIKey = v
	}
	if v := os.Getenv("CMC_API_KEY"); v != "" {
		cfg.Upstream.CoinMarketCapAPIKey = v
	}
	if v, ok := envInt("MIN_REQUEST_INTERVAL_SEC"); ok && v >= 0 {
		cfg.Upstream.MinRequestIntervalSec = v
	}

	if v, ok := envInt("CACHE_TTL_MINUTES"); ok && v > 0 {
		cfg.Cache.TTLMinutes = v
	}
	if v, ok := envInt("POLL_INTERVAL_SECONDS"); ok && v > 0 {
		cfg.Poll.IntervalSeconds = v
	}
	if v := os.Getenv("SYNTH_ANCHOR_PRICES"); v != "" {
		if anchors, err := parseFloatCSV(v); err == nil {
			cfg.Synth.AnchorPrices = anchors
		}
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseFloatCSV(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
