// Package cryptocompare is the client for the CryptoCompare price and
// history endpoints. It is the one upstream variant that offers real daily
// history, so it serves both the quote and the history interfaces.
package cryptocompare

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
	"github.com/cwhitelam/Tracker/internal/httpx"
	"github.com/cwhitelam/Tracker/internal/upstream"
)

const providerName = "cryptocompare"

type Config struct {
	BaseURL string // default: https://min-api.cryptocompare.com/data
	APIKey  string
}

type Client struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://min-api.cryptocompare.com/data"
	}
	return &Client{cfg: cfg, client: hc}
}

func (c *Client) headers() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"authorization": "Apikey " + c.cfg.APIKey}
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	resp, err := c.client.Get(ctx, url, c.headers())
	if err != nil {
		return upstream.Transport(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstream.Status(providerName, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return upstream.Shapef(providerName, "decode: %v", err)
	}
	return nil
}

// FetchCurrentQuote fetches the spot price. The price endpoint carries no
// 24h change; callers on this upstream derive the daily change from the
// opening price instead.
func (c *Client) FetchCurrentQuote(ctx context.Context) (bitcoin.CurrentQuote, error) {
	var body struct {
		USD *float64 `json:"USD"`
	}
	url := fmt.Sprintf("%s/price?fsym=BTC&tsyms=USD", c.cfg.BaseURL)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return bitcoin.CurrentQuote{}, err
	}
	if body.USD == nil {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "missing required field %q", "USD")
	}
	if *body.USD < 0 {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "negative price %f", *body.USD)
	}
	return bitcoin.CurrentQuote{Price: *body.USD}, nil
}

// histoResponse is the envelope shared by the histohour and histoday
// endpoints: {Data: {Data: [{time, open, close}, ...]}}.
type histoResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		Data []histoSample `json:"Data"`
	} `json:"Data"`
}

type histoSample struct {
	Time  *int64   `json:"time"`
	Open  *float64 `json:"open"`
	Close *float64 `json:"close"`
}

// FetchOpenToday returns today's opening price, taken from the first sample
// of the trailing 24h hourly series.
func (c *Client) FetchOpenToday(ctx context.Context) (float64, error) {
	var body histoResponse
	url := fmt.Sprintf("%s/v2/histohour?fsym=BTC&tsym=USD&limit=24", c.cfg.BaseURL)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return 0, err
	}
	if err := body.check(); err != nil {
		return 0, err
	}
	first := body.Data.Data[0]
	if first.Open == nil {
		return 0, upstream.Shapef(providerName, "missing required field %q", "open")
	}
	return *first.Open, nil
}

// FetchDailyHistory returns the trailing days of daily closes as price
// points, preserving upstream order (the caller sorts before use).
func (c *Client) FetchDailyHistory(ctx context.Context, days int) ([]bitcoin.PricePoint, error) {
	var body histoResponse
	url := fmt.Sprintf("%s/v2/histoday?fsym=BTC&tsym=USD&limit=%d", c.cfg.BaseURL, days)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	if err := body.check(); err != nil {
		return nil, err
	}

	points := make([]bitcoin.PricePoint, 0, len(body.Data.Data))
	for i, s := range body.Data.Data {
		if s.Time == nil || s.Close == nil {
			return nil, upstream.Shapef(providerName, "history sample %d missing time or close", i)
		}
		points = append(points, bitcoin.PricePoint{
			Date:  time.Unix(*s.Time, 0).UTC(),
			Price: *s.Close,
		})
	}
	return points, nil
}

func (r *histoResponse) check() error {
	// CryptoCompare reports API-level errors inside a 200 response.
	if r.Response == "Error" {
		return upstream.Statusf(providerName, "api error: %s", r.Message)
	}
	if len(r.Data.Data) == 0 {
		return upstream.Shapef(providerName, "empty Data.Data series")
	}
	return nil
}
