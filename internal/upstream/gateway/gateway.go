// Package gateway is the client for the in-house quote gateway, the thin
// proxy that shields the provider credential and returns a normalized
// {price, change} pair.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
	"github.com/cwhitelam/Tracker/internal/httpx"
	"github.com/cwhitelam/Tracker/internal/upstream"
)

const providerName = "gateway"

type Client struct {
	baseURL string
	client  *httpx.Client
}

func New(baseURL string, hc *httpx.Client) *Client {
	return &Client{baseURL: baseURL, client: hc}
}

// FetchCurrentQuote fetches the normalized spot quote. Both fields are
// required; a payload missing either one is rejected rather than defaulted.
func (c *Client) FetchCurrentQuote(ctx context.Context) (bitcoin.CurrentQuote, error) {
	resp, err := c.client.Get(ctx, c.baseURL+"/api/crypto/price", nil)
	if err != nil {
		return bitcoin.CurrentQuote{}, upstream.Transport(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return bitcoin.CurrentQuote{}, upstream.Status(providerName, resp.StatusCode)
	}

	var body struct {
		Price  *float64 `json:"price"`
		Change *float64 `json:"change"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "decode: %v", err)
	}
	if body.Price == nil {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "missing required field %q", "price")
	}
	if body.Change == nil {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "missing required field %q", "change")
	}
	if *body.Price < 0 {
		return bitcoin.CurrentQuote{}, upstream.Shapef(providerName, "negative price %f", *body.Price)
	}

	return bitcoin.CurrentQuote{Price: *body.Price, PercentChange24h: *body.Change}, nil
}
