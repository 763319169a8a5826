// Package wsapi bridges SystemMonitor.Subscribe to WebSocket clients:
// gorilla/websocket behind an Upgrader, one subscriber per connection,
// with a read loop and keepalive ping loop per connection; writes share
// a per-connection mutex.
package wsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nugget/pulse/internal/pulsemodel"
	"github.com/nugget/pulse/internal/sysmonitor"
)

// pingInterval is how often the server pings a connected client.
const pingInterval = 5 * time.Second

// readDeadline is the silence window after which the server tears
// down a connection: the client must ping (or send anything) at least
// this often.
const readDeadline = 10 * time.Second

// Monitor is the narrow surface Hub needs from SystemMonitor.
type Monitor interface {
	Subscribe(ctx context.Context, sink sysmonitor.Subscriber) (sysmonitor.SubscriberID, error)
	Unsubscribe(ctx context.Context, id sysmonitor.SubscriberID) error
}

// Hub upgrades incoming HTTP connections to WebSocket and streams
// DiskUsageRecords to each one via a per-connection subscription.
type Hub struct {
	monitor  Monitor
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New constructs a Hub backed by monitor.
func New(monitor Monitor, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		monitor: monitor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Telemetry is same-origin browser-console tooling, not a
			// public CORS surface; any origin is accepted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and blocks, streaming telemetry until
// the connection closes or the server shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("wsapi: upgrade failed", "error", err)
		return
	}
	h.serve(r.Context(), conn)
}

func (h *Hub) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	sink := &connSink{conn: conn, logger: h.logger, writeMu: &writeMu}

	id, err := h.monitor.Subscribe(ctx, sink)
	if err != nil {
		h.logger.Error("wsapi: subscribe failed", "error", err)
		return
	}
	defer h.monitor.Unsubscribe(context.Background(), id)

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		writeMu.Lock()
		defer writeMu.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	go h.pingLoop(ctx, conn, &writeMu)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("wsapi: connection closed normally", "subscriber", id)
			} else {
				h.logger.Debug("wsapi: read error, tearing down", "subscriber", id, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
	}
}

// pingLoop and connSink.Deliver both write to conn from separate
// goroutines (the Hub's own loop and the SystemMonitor driver that
// calls Deliver); gorilla/websocket permits only one writer at a time,
// so both share writeMu.
func (h *Hub) pingLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// connSink implements sysmonitor.Subscriber by writing each record as
// a JSON text frame.
type connSink struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	writeMu *sync.Mutex
}

func (s *connSink) Deliver(_ context.Context, rec pulsemodel.DiskUsageRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close is the monitor-side close signal: the server is going away, so
// tell the client before the TCP connection drops.
func (s *connSink) Close(context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
