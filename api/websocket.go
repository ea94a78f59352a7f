package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes only
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	defaultStreamInterval = 5 * time.Second
)

// wsRequest is a client command:
//
//	{"type":"subscribe","tickers":["AAPL","MSFT"]}
//	{"type":"unsubscribe","tickers":["MSFT"]}
//	{"type":"ping"}
type wsRequest struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers,omitempty"`
}

// handleWebSocket upgrades the connection and streams quotes for the
// client's subscriptions. New clients start subscribed to the watchlist.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewWSClient(s.wsHub)
	client.Subscribe(s.cfg.Market.Watchlist...)
	if !s.wsHub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump handles client commands until the connection fails.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient) {
	defer func() {
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			client.hub.SendTo(client, WSMessage{Type: "error", Data: "invalid message: " + err.Error()})
			continue
		}

		switch req.Type {
		case "subscribe":
			added := client.Subscribe(req.Tickers...)
			client.hub.SendTo(client, WSMessage{Type: "subscribed", Data: client.Subscriptions()})
			// Snapshot the new tickers right away instead of waiting for the next tick.
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			for _, t := range added {
				client.hub.SendTo(client, s.quoteMessage(ctx, t))
			}
			cancel()
		case "unsubscribe":
			client.Unsubscribe(req.Tickers...)
			client.hub.SendTo(client, WSMessage{Type: "subscribed", Data: client.Subscriptions()})
		case "ping":
			client.hub.SendTo(client, WSMessage{Type: "pong"})
		default:
			client.hub.SendTo(client, WSMessage{Type: "error", Data: "unknown message type " + req.Type})
		}
	}
}

// wsWritePump pumps messages from the hub to the WebSocket connection.
func wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// quoteMessage fetches one quote as a stream message. Failures become an
// error message for the same ticker.
func (s *Server) quoteMessage(ctx context.Context, ticker string) WSMessage {
	q, err := s.agg.Market().GetQuote(ctx, ticker)
	if err != nil {
		return WSMessage{Type: "error", Ticker: ticker, Data: err.Error()}
	}
	return WSMessage{Type: "quote", Ticker: ticker, Data: q}
}

// publishQuotes broadcasts one quote per subscribed ticker.
func (s *Server) publishQuotes(ctx context.Context) int {
	tickers := s.wsHub.Subscriptions()
	for _, t := range tickers {
		s.wsHub.Broadcast(s.quoteMessage(ctx, t))
	}
	return len(tickers)
}

// streamQuotes publishes quotes every interval while clients are connected.
func (s *Server) streamQuotes(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.wsHub.ClientCount() > 0 {
				s.publishQuotes(ctx)
			}
		}
	}
}
