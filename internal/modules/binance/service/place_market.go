package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// MarketSell — рыночная продажа, возвращает среднюю цену исполнения.
func (c *Client) MarketSell(ctx context.Context, symbol string, qty float64) (float64, error) {
	return c.placeMarket(ctx, symbol, "SELL", qty)
}

// MarketBuy — рыночная покупка, только для автоматического входа.
func (c *Client) MarketBuy(ctx context.Context, symbol string, qty float64) (float64, error) {
	return c.placeMarket(ctx, symbol, "BUY", qty)
}

func (c *Client) placeMarket(ctx context.Context, symbol, side string, qty float64) (float64, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return 0, errors.New("api creds empty")
	}
	if qty <= 0 {
		return 0, fmt.Errorf("placeMarket: qty <= 0")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	params.Set("timestamp", strconv.FormatInt(time.Now().UTC().UnixMilli(), 10))

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.restHost+"/api/v3/order", strings.NewReader(query))
	if err != nil {
		return 0, fmt.Errorf("placeMarket new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("placeMarket do: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("placeMarket http %d: %s", resp.StatusCode, string(body))
	}

	var wrap struct {
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		Fills               []struct {
			Price string `json:"price"`
			Qty   string `json:"qty"`
		} `json:"fills"`
	}
	if err := sonic.Unmarshal(body, &wrap); err != nil {
		return 0, fmt.Errorf("placeMarket unmarshal: %w", err)
	}

	// средняя цена: сперва из quote/executed, иначе по fills
	executed, _ := strconv.ParseFloat(wrap.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(wrap.CummulativeQuoteQty, 64)
	if executed > 0 && quote > 0 {
		return quote / executed, nil
	}

	var sumQty, sumQuote float64
	for _, f := range wrap.Fills {
		p, err1 := strconv.ParseFloat(f.Price, 64)
		q, err2 := strconv.ParseFloat(f.Qty, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		sumQty += q
		sumQuote += p * q
	}
	if sumQty > 0 {
		return sumQuote / sumQty, nil
	}
	return 0, fmt.Errorf("placeMarket: no fill info in response: %s", string(body))
}
