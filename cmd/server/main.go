package main

import (
	"compress/gzip"
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
	"github.com/cwhitelam/Tracker/internal/config"
	"github.com/cwhitelam/Tracker/internal/httpx"
	"github.com/cwhitelam/Tracker/internal/metrics"
	"github.com/cwhitelam/Tracker/internal/poll"
	"github.com/cwhitelam/Tracker/internal/portfolio"
	"github.com/cwhitelam/Tracker/internal/upstream/coinmarketcap"
	"github.com/cwhitelam/Tracker/internal/upstream/cryptocompare"
	"github.com/cwhitelam/Tracker/internal/upstream/gateway"
	"github.com/cwhitelam/Tracker/internal/upstream/ratelimit"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))
	m := metrics.New(prometheus.DefaultRegisterer)

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	// Price data service over the configured upstream variant.
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

	synth := bitcoin.NewSynthesizer(cfg.Synth.AnchorPrices, nil)
	svc := bitcoin.NewService(quoteSrc, histSrc, cfg.Cache.TTL(), synth, m, logger)

	// The credentialed provider behind the gateway route.
	var gatewayQuotes bitcoin.QuoteSource
	if key := cfg.Upstream.CoinMarketCapAPIKey; key != "" {
		cmc, err := coinmarketcap.NewClient(key,
			coinmarketcap.WithHTTPClient(httpClient.HTTP),
			coinmarketcap.WithHeader(http.Header{"Accept-Encoding": []string{"deflate, gzip"}}),
		)
		if err != nil {
			log.Fatalf("coinmarketcap client: %v", err)
		}
		gatewayQuotes = cmc
		if cfg.Upstream.MinRequestIntervalSec > 0 {
			gatewayQuotes = &ratelimit.MinInterval{
				Source:   gatewayQuotes,
				Interval: time.Duration(cfg.Upstream.MinRequestIntervalSec) * time.Second,
			}
		}
	} else {
		logger.Warn("CMC_API_KEY not set; /api/crypto/price will be unavailable")
	}

	purchaseDate, err := cfg.Holding.Date()
	if err != nil {
		log.Fatalf("purchase date: %v", err)
	}
	srv := &server{
		svc:    svc,
		quotes: gatewayQuotes,
		holding: portfolio.Holding{
			AmountBTC:            cfg.Holding.AmountBTC,
			InitialInvestmentUSD: cfg.Holding.InitialInvestmentUSD,
			PurchaseDate:         purchaseDate,
		},
		log: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep the snapshot cache warm on the same cadence the widget polls at.
	poller := poll.New(cfg.Poll.Interval(), func(ctx context.Context) error {
		_, _, err := srv.snapshot(ctx)
		return err
	}, logger, m.PollTicksSkippedTotal.Inc)
	go poller.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/api/", withJSONHeaders(withGzip(recoverPanic(srv.routes())), cfg.Server.CORSAllowOrigin))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port, "provider", cfg.Upstream.Provider)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func withJSONHeaders(next http.Handler, corsOrigin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses responses when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
