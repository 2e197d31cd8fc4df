package service

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// StreamPrices — один combined-stream miniTicker на всю пачку символов,
// наполняет кеш последних цен. Реконнект с паузой, пинги шлёт сам Binance.
func (c *Client) StreamPrices(ctx context.Context, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(s)+"@miniTicker")
	}
	url := c.wsHost + "/stream?streams=" + strings.Join(streams, "/")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			log.Printf("[WS] connect miniTicker, %d symbols", len(symbols))
			conn, _, err := c.wsDialer.Dial(url, nil)
			if err != nil {
				log.Printf("[WS] dial error: %v", err)
				time.Sleep(time.Second)
				continue
			}

			// ReadMessage не умеет в контекст: при отмене рвём соединение
			// снаружи, иначе горутина повиснет до первой ошибки чтения
			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					_ = conn.Close()
				case <-done:
				}
			}()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("[WS] read error: %v", err)
					}
					_ = conn.Close()
					break
				}

				var frame struct {
					Stream string `json:"stream"`
					Data   struct {
						Symbol string `json:"s"`
						Close  string `json:"c"`
					} `json:"data"`
				}
				if err := sonic.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if frame.Data.Symbol == "" {
					continue
				}
				px, err := strconv.ParseFloat(frame.Data.Close, 64)
				if err != nil || px <= 0 {
					continue
				}
				c.SetPrice(frame.Data.Symbol, px)
			}
			close(done)

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()
}
