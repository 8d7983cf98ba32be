// Package coinmarketcap is the server-side client behind the quote gateway
// route. It holds the provider credential and normalizes the CoinMarketCap
// quote payload into the internal {price, change} pair.
package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
	"github.com/cwhitelam/Tracker/internal/upstream"
)

const (
	providerName   = "coinmarketcap"
	defaultBaseURL = "https://pro-api.coinmarketcap.com/v1"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coinmarketcap_test -destination=mock_http_client_test.go -source=coinmarketcap.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the CoinMarketCap API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey authenticates every request via the X-CMC_PRO_API_KEY header.
	apiKey string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the CoinMarketCap client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new CoinMarketCap client.
func NewClient(apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("coinmarketcap: api key is required")
	}
	client := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// quoteResponse is the subset of the quotes/latest payload we consume.
// Required leaves are pointers so absence is detectable.
type quoteResponse struct {
	Status struct {
		ErrorCode    int     `json:"error_code"`
		ErrorMessage *string `json:"error_message"`
	} `json:"status"`
	Data struct {
		BTC struct {
			Quote struct {
				USD *struct {
					Price            *float64 `json:"price"`
					PercentChange24h *float64 `json:"percent_change_24h"`
				} `json:"USD"`
			} `json:"quote"`
		} `json:"BTC"`
	} `json:"data"`
}

// FetchCurrentQuote retrieves the latest BTC/USD quote.
func (c *Client) FetchCurrentQuote(ctx context.Context) (bitcoin.CurrentQuote, error) {
	url := fmt.Sprintf("%s/cryptocurrency/quotes/latest?symbol=BTC&convert=USD", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return bitcoin.CurrentQuote{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return bitcoin.CurrentQuote{}, upstream.Transport(providerName, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return bitcoin.CurrentQuote{}, upstream.Status(providerName, res.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "decode: %v", err)
	}

	if body.Status.ErrorCode != 0 {
		msg := "unknown error"
		if body.Status.ErrorMessage != nil {
			msg = *body.Status.ErrorMessage
		}
		return bitcoin.CurrentQuote{}, upstream.Statusf(providerName, "api error %d: %s", body.Status.ErrorCode, msg)
	}

	usd := body.Data.BTC.Quote.USD
	if usd == nil {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "missing data.BTC.quote.USD")
	}
	if usd.Price == nil || usd.PercentChange24h == nil {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "missing price or percent_change_24h")
	}

	return bitcoin.CurrentQuote{Price: *usd.Price, PercentChange24h: *usd.PercentChange24h}, nil
}
