// Package gateway is the realtime fan-out layer: one process-wide broadcast
// hub behind an authenticated websocket handshake. There is no per-room
// subscription; every open connection receives every emission and filters by
// the envelope's channel name.
package gateway

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Envelope is the wire frame of an emission. Channel carries the room key
// (create or delete variant); Data is the full post-mutation message.
type Envelope struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

type Hub struct {
	register   chan *connection
	unregister chan *connection
	broadcast  chan []byte
	conns      map[*connection]bool
	log        *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		register:   make(chan *connection),
		unregister: make(chan *connection),
		broadcast:  make(chan []byte, 256),
		conns:      make(map[*connection]bool),
		log:        log,
	}
}

// Run owns the connection set; it is the only goroutine touching it.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.conns {
				close(c.send)
			}
			return
		case c := <-h.register:
			h.conns[c] = true
			activeConnections.Inc()
		case c := <-h.unregister:
			if _, ok := h.conns[c]; ok {
				delete(h.conns, c)
				close(c.send)
				activeConnections.Dec()
			}
		case frame := <-h.broadcast:
			for c := range h.conns {
				select {
				case c.send <- frame:
				default:
					// A consumer this far behind is dropped; it
					// reconnects and catches up over REST.
					delete(h.conns, c)
					close(c.send)
					activeConnections.Dec()
				}
			}
		}
	}
}

// Emit fans the payload out to all open connections, at most once, never
// blocking the caller. There is no queueing or replay; a client that is not
// connected simply misses the emission.
func (h *Hub) Emit(channel string, data any) {
	frame, err := json.Marshal(Envelope{Channel: channel, Data: data})
	if err != nil {
		h.log.Errorw("marshal emission", "channel", channel, "err", err)
		return
	}
	emissions.Inc()
	select {
	case h.broadcast <- frame:
	default:
		h.log.Warnw("broadcast queue full, emission dropped", "channel", channel)
	}
}
