package api

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/seenimoa/marketdesk/pkg/utils"
)

// WSMessage is a message sent over WebSocket connections. Messages with a
// Ticker reach only clients subscribed to it.
type WSMessage struct {
	Type   string      `json:"type"`
	Ticker string      `json:"ticker,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message fan-out. All client
// channel sends and closes happen on the Run goroutine.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	direct     chan directMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	stopOnce   sync.Once
	log        zerolog.Logger
}

type directMessage struct {
	client *WSClient
	msg    WSMessage
}

// WSClient represents a single WebSocket connection and its ticker
// subscriptions.
type WSClient struct {
	hub     *WSHub
	send    chan WSMessage
	mu      sync.RWMutex
	tickers map[string]bool
}

// NewWSClient creates a client with a buffered send queue.
func NewWSClient(hub *WSHub) *WSClient {
	return &WSClient{
		hub:     hub,
		send:    make(chan WSMessage, 256),
		tickers: make(map[string]bool),
	}
}

// Subscribe adds tickers and returns the normalized ones that were new.
func (c *WSClient) Subscribe(tickers ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var added []string
	for _, t := range tickers {
		t = utils.NormalizeTicker(t)
		if t == "" || c.tickers[t] {
			continue
		}
		c.tickers[t] = true
		added = append(added, t)
	}
	return added
}

// Unsubscribe removes tickers.
func (c *WSClient) Unsubscribe(tickers ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tickers {
		delete(c.tickers, utils.NormalizeTicker(t))
	}
}

// Subscriptions returns the client's tickers, sorted.
func (c *WSClient) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tickers))
	for t := range c.tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (c *WSClient) wants(msg WSMessage) bool {
	if msg.Ticker == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickers[msg.Ticker]
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(log zerolog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		direct:     make(chan directMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// Run starts the hub event loop. It returns when ctx is done, closing
// every client.
func (h *WSHub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.drop(client)
		case d := <-h.direct:
			h.deliver(d.client, d.msg)
		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*WSClient, 0, len(h.clients))
			for client := range h.clients {
				if client.wants(msg) {
					targets = append(targets, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range targets {
				h.deliver(client, msg)
			}
		}
	}
}

// deliver queues msg for a registered client, dropping the client when its
// queue is full.
func (h *WSHub) deliver(client *WSClient, msg WSMessage) {
	h.mu.RLock()
	registered := h.clients[client]
	h.mu.RUnlock()
	if !registered {
		return
	}
	select {
	case client.send <- msg:
	default:
		h.log.Warn().Msg("slow websocket client, disconnecting")
		h.drop(client)
	}
}

func (h *WSHub) drop(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *WSHub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
	})
}

// Broadcast sends a message to all interested clients. It never blocks;
// the message is dropped when the queue is full.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// SendTo queues a message for one client.
func (h *WSHub) SendTo(client *WSClient, msg WSMessage) {
	select {
	case h.direct <- directMessage{client: client, msg: msg}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscriptions returns the union of all client subscriptions, sorted.
func (h *WSHub) Subscriptions() []string {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, c := range clients {
		for _, t := range c.Subscriptions() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Register adds a client to the hub. It reports false once the hub has
// stopped.
func (h *WSHub) Register(client *WSClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
