// Package live pushes score snapshots to spectators over WebSocket. The
// engines do not know about it; API handlers broadcast after a successful
// ledger mutation.
package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/internal/scoring"
)

const writeTimeout = 5 * time.Second

// Update is one live-score frame.
type Update struct {
	GameID   uuid.UUID      `json:"game_id"`
	Snapshot scoring.Result `json:"snapshot"`
	At       time.Time      `json:"at"`
}

// Hub tracks spectator connections per game.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	games map[uuid.UUID]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger.With(zap.String("component", "live")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Spectator feed, no credentials carried
			CheckOrigin: func(*http.Request) bool { return true },
		},
		games: make(map[uuid.UUID]map[*websocket.Conn]struct{}),
	}
}

// Subscribe upgrades the request and registers the connection for a game's
// updates. Blocks until the client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, gameID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	if h.games[gameID] == nil {
		h.games[gameID] = make(map[*websocket.Conn]struct{})
	}
	h.games[gameID][conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("spectator connected", zap.String("game_id", gameID.String()))

	// Read loop only exists to notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(gameID, conn)
}

// Broadcast sends a fresh score snapshot to every spectator of a game.
// Connections that fail to write are dropped.
func (h *Hub) Broadcast(gameID uuid.UUID, snapshot scoring.Result) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.games[gameID]))
	for conn := range h.games[gameID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	update := Update{
		GameID:   gameID,
		Snapshot: snapshot,
		At:       time.Now().UTC(),
	}

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(update); err != nil {
			h.logger.Debug("dropping spectator",
				zap.String("game_id", gameID.String()),
				zap.Error(err))
			h.remove(gameID, conn)
		}
	}
}

func (h *Hub) remove(gameID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	if set, ok := h.games[gameID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.games, gameID)
		}
	}
	h.mu.Unlock()
	_ = conn.Close()
}
