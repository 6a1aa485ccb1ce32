package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ticktak/backend/internal/entity"
	"github.com/ticktak/backend/internal/registry"
	"github.com/ticktak/backend/pkg/handlers"
)

const shutdownTimeout = 5 * time.Second

type matchManager interface {
	GetOrCreateMatch(ctx context.Context, matchID, connectionID string) (*entity.Match, error)
	ApplyMove(ctx context.Context, matchID string, grid, x, y int) (*entity.Match, error)
}

type Server struct {
	logger   *slog.Logger
	manager  matchManager
	registry *registry.Registry
	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, manager matchManager, reg *registry.Registry) *Server {
	return &Server{
		logger:   logger,
		manager:  manager,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

// Handler - the broker's HTTP surface: the match socket and a health
// route. The path pattern rejects anything but lowercase-and-dash match
// ids before the upgrade happens.
func (that *Server) Handler(ctx context.Context) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/match/{id:[a-z-]+}", func(w http.ResponseWriter, r *http.Request) {
		that.handleMatch(ctx, w, r)
	})
	router.HandleFunc("/ping", handlers.PingHandler)

	return router
}

// Start - starts the WebSocket server and shuts it down when ctx is
// canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// handleMatch - upgrades the connection and runs its control loop; one
// goroutine per connection, courtesy of net/http.
func (that *Server) handleMatch(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "handleMatch")

	matchID := mux.Vars(req)["id"]

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		// Upgrade has already replied to the client
		log.Error("websocket handshake failed", "error", err)
		return
	}

	that.serveConnection(ctx, conn, matchID)
}

// serveConnection - per-connection state machine: announce the identity,
// resolve the match, attach to the registry, then pump inbound frames
// until the peer goes away.
func (that *Server) serveConnection(ctx context.Context, conn *websocket.Conn, matchID string) {
	cl := newClient(that.logger, conn, matchID)
	go cl.writePump()
	defer cl.close()

	log := that.logger.With("method", "serveConnection", "matchID", matchID, "connectionID", cl.id)

	if err := that.sendJSON(cl, UserIDMessage{Type: messageTypeUserID, UserID: cl.id}); err != nil {
		log.Error("failed to send user id", "error", err)
		return
	}

	match, err := that.manager.GetOrCreateMatch(ctx, matchID, cl.id)
	if err != nil {
		log.Error("failed to resolve match", "error", err)
		return
	}

	initial := InitialMatchDataMessage{
		Type:  messageTypeInitialMatchData,
		Board: match.Board,
		Turn:  match.Turn,
		Mark:  match.MarkFor(cl.id),
	}
	if err = that.sendJSON(cl, initial); err != nil {
		log.Error("failed to send initial match data", "error", err)
		return
	}

	that.registry.Register(matchID, cl.id, cl)
	defer that.registry.Unregister(matchID, cl.id)

	log.Info("connection attached")

	that.readLoop(ctx, cl)

	log.Info("connection closed")
}

// readLoop - decodes inbound frames and applies moves. An illegal or
// failed move is logged and produces no frame; the lack of an update is
// the client's only signal.
func (that *Server) readLoop(ctx context.Context, cl *client) {
	log := that.logger.With("method", "readLoop", "matchID", cl.matchID, "connectionID", cl.id)

	cl.conn.SetReadLimit(maxMessageSize)

	for {
		messageType, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var req MoveRequest
		if err = json.Unmarshal(data, &req); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		if req.Type != messageTypeMove {
			continue
		}

		match, err := that.manager.ApplyMove(ctx, cl.matchID, req.Grid, req.X, req.Y)
		if err != nil {
			log.Error("failed to make move", "error", err)
			continue
		}

		payload, err := json.Marshal(MoveMessage{
			Type:       messageTypeMove,
			Board:      match.Board,
			Turn:       match.Turn,
			ActiveGrid: GridRef{X: req.X, Y: req.Y},
		})
		if err != nil {
			log.Error("failed to marshal move message", "error", err)
			continue
		}

		that.registry.Broadcast(cl.matchID, payload)
	}
}

func (that *Server) sendJSON(cl *client, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err = cl.Send(payload); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	return nil
}
