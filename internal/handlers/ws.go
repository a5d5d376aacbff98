package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fleetwatch-dev/fleetwatch/internal/types"
	"github.com/fleetwatch-dev/fleetwatch/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	companyClients   = make(map[string]map[*websocket.Conn]bool)
	companyClientsMu sync.RWMutex
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// BroadcastAlertRefresh tells every connected operator of a company that
// the alert queue changed.
func BroadcastAlertRefresh(companyID uint) {
	key := strconv.FormatUint(uint64(companyID), 10)

	companyClientsMu.RLock()
	clients, exists := companyClients[key]
	if !exists || len(clients) == 0 {
		companyClientsMu.RUnlock()
		return
	}

	// Copy so the lock is not held during message sending
	clientsCopy := make([]*websocket.Conn, 0, len(clients))
	for conn := range clients {
		clientsCopy = append(clientsCopy, conn)
	}
	companyClientsMu.RUnlock()

	for _, conn := range clientsCopy {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			logger.Warn("Failed to set write deadline for broadcast", zap.Error(err))
			continue
		}

		err := conn.WriteJSON(map[string]string{
			"type":       "refresh",
			"message":    "Alert queue updated",
			"company_id": key,
		})

		if err != nil {
			logger.Warn("Failed to broadcast refresh to client", zap.Error(err))
			companyClientsMu.Lock()
			if clients, exists := companyClients[key]; exists {
				delete(clients, conn)
				if len(clients) == 0 {
					delete(companyClients, key)
				}
			}
			companyClientsMu.Unlock()
			conn.Close()
		}
	}
}

// WebSocket streams alert queue refresh signals to the caller's company.
func WebSocket(c *gin.Context) {
	companyID, err := utils.GetCurrentCompanyID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	key := strconv.FormatUint(uint64(companyID), 10)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range types.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Warn("Failed to set initial read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	companyClientsMu.Lock()
	if companyClients[key] == nil {
		companyClients[key] = make(map[*websocket.Conn]bool)
	}
	companyClients[key][conn] = true
	companyClientsMu.Unlock()

	defer func() {
		companyClientsMu.Lock()

		if clients, exists := companyClients[key]; exists {
			delete(clients, conn)

			if len(clients) == 0 {
				delete(companyClients, key)
			}
		}

		companyClientsMu.Unlock()
		conn.Close()

		logger.Info("WebSocket connection closed", zap.String("company_id", key))
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}

	err = conn.WriteJSON(map[string]string{
		"type":       "connected",
		"message":    "WebSocket connection established",
		"company_id": key,
	})

	if err != nil {
		logger.Warn("Failed to send welcome message", zap.Error(err))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			break
		}

		messageType, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.String("company_id", key), zap.Error(err))
			}
			break
		}

		if messageType == websocket.CloseMessage {
			break
		}
	}
}
