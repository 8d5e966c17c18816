package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"marketsim/internal/stats"
)

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	send := hub.Subscriber()
	// The write loop only picks clients up once registered; retry briefly.
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	var got struct {
		Kind  string          `json:"kind"`
		Event json.RawMessage `json:"event"`
	}
	for {
		send(stats.TransactionEvent{Time: 5, MarketID: 1, Price: 150, Quantity: 1})
		conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, msg, err := conn.ReadMessage()
		if err == nil {
			if err := json.Unmarshal(msg, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no broadcast received: %v", err)
		}
	}
	if got.Kind != "transaction" {
		t.Errorf("envelope kind = %q, want transaction", got.Kind)
	}
	var tx stats.TransactionEvent
	if err := json.Unmarshal(got.Event, &tx); err != nil || tx.Price != 150 {
		t.Errorf("event payload = %s (%v), want price 150", got.Event, err)
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Run is never started, so the buffer fills; sends must not block.
	send := hub.Subscriber()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5000; i++ {
			send(stats.FundamentalSample{Time: 1, Value: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber blocked on a full broadcast buffer")
	}
}
