package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"trailing_bot/internal/models"
)

// Candles — закрытые свечи символа, oldest first, как их и отдаёт Binance.
func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 50
	}
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.restHost, symbol, interval, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("Candles new request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Candles do: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("Candles http %d: %s", resp.StatusCode, string(body))
	}

	// формат kline: [openTime, "o", "h", "l", "c", "v", closeTime, "quoteVol", ...]
	var rows [][]any
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("Candles unmarshal: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openMs, ok := row[0].(float64)
		if !ok {
			continue
		}
		open, err1 := parseField(row[1])
		high, err2 := parseField(row[2])
		low, err3 := parseField(row[3])
		closep, err4 := parseField(row[4])
		vol, err5 := parseField(row[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		if closep <= 0 {
			continue
		}
		out = append(out, models.Candle{
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closep,
			Volume: vol,
			Start:  time.UnixMilli(int64(openMs)),
		})
	}
	return out, nil
}

func parseField(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected kline field %T", v)
	}
}
