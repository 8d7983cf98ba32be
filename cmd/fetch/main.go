// Command fetch performs a single snapshot fetch and prints the result as
// JSON. Useful for smoke-testing upstream credentials without running the
// server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
	"github.com/cwhitelam/Tracker/internal/config"
	"github.com/cwhitelam/Tracker/internal/httpx"
	"github.com/cwhitelam/Tracker/internal/metrics"
	"github.com/cwhitelam/Tracker/internal/portfolio"
	"github.com/cwhitelam/Tracker/internal/upstream/cryptocompare"
	"github.com/cwhitelam/Tracker/internal/upstream/gateway"
)

func main() {
	var providerName string
	var startDateStr string
	var withPortfolio bool
	var timeout int
	var configPath string

	flag.StringVar(&providerName, "provider", getenv("UPSTREAM_PROVIDER", ""), "quote source: gateway or cryptocompare (default from config)")
	flag.StringVar(&startDateStr, "start-date", getenv("PURCHASE_DATE", ""), "history start date, YYYY-MM-DD (default from config)")
	flag.BoolVar(&withPortfolio, "portfolio", false, "include the holding summary in the output")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if providerName != "" {
		cfg.Upstream.Provider = providerName
	}
	if startDateStr != "" {
		cfg.Holding.PurchaseDate = startDateStr
	}
	if timeout != 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var quoteSrc bitcoin.QuoteSource
	var histSrc bitcoin.HistorySource
	switch cfg.Upstream.Provider {
	case "cryptocompare":
		cc := cryptocompare.New(cryptocompare.Config{
			BaseURL: cfg.Upstream.CryptoCompareURL,
			APIKey:  cfg.Upstream.CryptoCompareAPIKey,
		}, httpClient)
		quoteSrc, histSrc = cc, cc
	default:
		quoteSrc = gateway.New(cfg.Upstream.GatewayURL, httpClient)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	m := metrics.New(prometheus.NewRegistry())
	synth := bitcoin.NewSynthesizer(cfg.Synth.AnchorPrices, nil)
	svc := bitcoin.NewService(quoteSrc, histSrc, cfg.Cache.TTL(), synth, m, logger)

	startDate, err := cfg.Holding.Date()
	if err != nil {
		log.Fatalf("start date: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second)
	defer cancel()

	snap, err := svc.GetBitcoinData(ctx, startDate)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	log.Printf("%s: %d history points", cfg.Upstream.Provider, len(snap.PriceHistory))

	out := struct {
		Snapshot  bitcoin.Snapshot   `json:"snapshot"`
		Portfolio *portfolio.Summary `json:"portfolio,omitempty"`
	}{Snapshot: snap}
	if withPortfolio {
		sum := portfolio.Summarize(portfolio.Holding{
			AmountBTC:            cfg.Holding.AmountBTC,
			InitialInvestmentUSD: cfg.Holding.InitialInvestmentUSD,
			PurchaseDate:         startDate,
		}, snap, time.Now())
		out.Portfolio = &sum
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
