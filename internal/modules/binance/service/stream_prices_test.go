package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trailing_bot/internal/modules/config"
)

func TestStreamPricesFeedsCacheAndStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	connected := make(chan struct{})
	dropped := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		close(connected)

		frame := `{"stream":"btcusdt@miniTicker","data":{"s":"BTCUSDT","c":"123.45"}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Errorf("write: %v", err)
			return
		}

		// клиент обязан разорвать соединение при отмене контекста
		_, _, _ = conn.ReadMessage()
		close(dropped)
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Binance.WSHost = "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StreamPrices(ctx, []string{"BTCUSDT"})

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not connect")
	}

	deadline := time.After(2 * time.Second)
	for c.LastPrice("BTCUSDT") != 123.45 {
		select {
		case <-deadline:
			t.Fatalf("price cache not fed, got %v", c.LastPrice("BTCUSDT"))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not close the connection")
	}
}
