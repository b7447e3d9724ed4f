package stream

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/pkg/logger"
)

var hubLog = logger.Component("stream")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The demo surface accepts any origin; put a gateway in front for real deployments
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans ledger/executor events out to connected websocket clients. It
// implements model.EventSink; Publish never blocks the emitting component.
type Hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]bool
	events chan model.Event
	stop   chan struct{}
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[*websocket.Conn]bool),
		events: make(chan model.Event, 256),
		stop:   make(chan struct{}),
	}
}

func (h *Hub) Publish(evt model.Event) {
	select {
	case h.events <- evt:
	default:
		hubLog.Warn("event stream buffer full, dropping event", "type", string(evt.Type))
	}
}

func (h *Hub) Start() {
	go h.broadcast()
}

func (h *Hub) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// ServeWS upgrades the request and registers the connection. Clients are
// read-drained so pings and close frames are handled.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hubLog.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) broadcast() {
	for {
		select {
		case <-h.stop:
			h.closeAll()
			return
		case evt := <-h.events:
			h.mu.Lock()
			for conn := range h.conns {
				if err := conn.WriteJSON(evt); err != nil {
					delete(h.conns, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
