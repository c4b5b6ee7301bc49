package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/requestdata"
	"github.com/intec-ai/intec-backend/internal/socket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func WsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == uuid.Nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("Failed to upgrade to websocket", "error", err)
			return
		}

		// The WS outlives the HTTP request, so the pumps run on their
		// own cancellable context.
		ctx, cancel := context.WithCancel(context.Background())
		client := socket.NewClient(conn, hub, rd.UserID, cancel, log)

		hub.Subscribe(client, []string{"user:" + rd.UserID.String()})

		go client.ReadLoop(ctx)
		go client.WriteLoop(ctx)
	}
}
