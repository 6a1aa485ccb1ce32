package registry

import (
	"log/slog"
	"sync"
)

// Conn is the enqueue handle the registry holds for a live connection.
// The connection's own write pump owns the socket; Send only queues.
type Conn interface {
	Send(payload []byte) error
}

// Registry is the process-wide index of live connections grouped by match.
// The two-level map is only ever touched under mu, and never escapes.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	matches map[string]map[string]Conn
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		matches: make(map[string]map[string]Conn),
	}
}

// Register - makes the connection a broadcast target for the match,
// replacing any previous connection with the same id.
func (that *Registry) Register(matchID, connectionID string, conn Conn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	connections, ok := that.matches[matchID]
	if !ok {
		connections = make(map[string]Conn)
		that.matches[matchID] = connections
	}

	connections[connectionID] = conn
}

// Unregister - removes the connection; the match entry is pruned once its
// last connection is gone.
func (that *Registry) Unregister(matchID, connectionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	connections, ok := that.matches[matchID]
	if !ok {
		return
	}

	delete(connections, connectionID)

	if len(connections) == 0 {
		delete(that.matches, matchID)
	}
}

// Broadcast - enqueues payload to every connection registered for the
// match. The connection set is snapshotted under the lock and sends happen
// outside it, so a slow client never blocks registration on other matches.
// Individual send failures are logged and do not abort delivery.
func (that *Registry) Broadcast(matchID string, payload []byte) {
	log := that.logger.With("method", "Broadcast", "matchID", matchID)

	that.mu.Lock()
	snapshot := make(map[string]Conn, len(that.matches[matchID]))
	for connectionID, conn := range that.matches[matchID] {
		snapshot[connectionID] = conn
	}
	that.mu.Unlock()

	for connectionID, conn := range snapshot {
		if err := conn.Send(payload); err != nil {
			log.Error("failed to send to connection", "connectionID", connectionID, "error", err)
		}
	}
}
