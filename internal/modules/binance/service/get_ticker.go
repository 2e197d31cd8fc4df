package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"trailing_bot/internal/models"
)

// Ticker — 24ч статистика символа: последняя цена, изменение, quote-объём.
func (c *Client) Ticker(ctx context.Context, symbol string) (models.Ticker, error) {
	url := c.restHost + "/api/v3/ticker/24hr?symbol=" + symbol

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("Ticker new request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("Ticker do: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return models.Ticker{}, fmt.Errorf("Ticker http %d: %s", resp.StatusCode, string(body))
	}

	// Binance отдаёт числа строками
	var raw struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		QuoteVolume        string `json:"quoteVolume"`
	}
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return models.Ticker{}, fmt.Errorf("Ticker unmarshal: %w", err)
	}

	last, err := strconv.ParseFloat(raw.LastPrice, 64)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("Ticker lastPrice %q: %w", raw.LastPrice, err)
	}
	change, _ := strconv.ParseFloat(raw.PriceChangePercent, 64)
	quoteVol, _ := strconv.ParseFloat(raw.QuoteVolume, 64)

	return models.Ticker{
		Symbol:         raw.Symbol,
		LastPrice:      last,
		ChangePct24h:   change,
		QuoteVolume24h: quoteVol,
	}, nil
}
