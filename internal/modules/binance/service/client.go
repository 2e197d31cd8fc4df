package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trailing_bot/internal/modules/config"
)

// Client — REST + WS клиент Binance spot. Кеш последних цен наполняется
// из miniTicker-стрима, REST остаётся фолбэком.
type Client struct {
	restHost  string
	wsHost    string
	apiKey    string
	apiSecret string

	http     *http.Client
	wsDialer *websocket.Dialer

	mu     sync.RWMutex
	prices map[string]float64
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		restHost:  cfg.Binance.RESTHost,
		wsHost:    cfg.Binance.WSHost,
		apiKey:    cfg.Binance.APIKey,
		apiSecret: cfg.Binance.APISecret,
		http:      &http.Client{Timeout: 15 * time.Second},
		wsDialer:  &websocket.Dialer{},
		prices:    make(map[string]float64),
	}
}

func (c *Client) SetPrice(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

// LastPrice — последняя цена из WS-кеша, 0 если стрим ещё не принёс.
func (c *Client) LastPrice(symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prices[symbol]
}

func (c *Client) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}
