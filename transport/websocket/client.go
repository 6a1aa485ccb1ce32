package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// how often the write pump pings the peer
	pingPeriod = 54 * time.Second

	// maximum inbound message size
	maxMessageSize = 512

	sendBufferSize = 32
)

var (
	ErrSendBufferFull   = errors.New("send buffer is full")
	ErrConnectionClosed = errors.New("connection is closed")
)

// client is one live connection. The receive loop and the write pump are
// the only owners of the socket; everyone else (the registry) only holds
// the Send enqueue handle.
type client struct {
	id      string
	matchID string

	logger *slog.Logger
	conn   *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(logger *slog.Logger, conn *websocket.Conn, matchID string) *client {
	return &client{
		id:      uuid.NewString(),
		matchID: matchID,
		logger:  logger,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// Send - enqueues a payload for the write pump. Never blocks: a closed
// connection or a full buffer is reported as an error and the payload is
// dropped.
func (that *client) Send(payload []byte) error {
	select {
	case <-that.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case that.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// close - stops the write pump; safe to call more than once.
func (that *client) close() {
	that.once.Do(func() {
		close(that.done)
	})
}

// writePump - drains the outbound queue onto the socket and keeps the
// connection alive with pings. Sole writer of the socket.
func (that *client) writePump() {
	log := that.logger.With("method", "writePump", "connectionID", that.id)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := that.conn.Close(); err != nil {
			log.Debug("failed to close connection", "error", err)
		}
	}()

	for {
		select {
		case payload := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("failed to write message", "error", err)
				return
			}
		case <-that.done:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = that.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to write ping", "error", err)
				return
			}
		}
	}
}
