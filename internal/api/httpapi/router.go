package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/park285/cheese-arena/internal/history"
	"github.com/park285/cheese-arena/internal/obslog"
	svcarena "github.com/park285/cheese-arena/internal/service/arena"
	"go.uber.org/zap"
)

// RoomStreamer serves a spectator stream for one room.
type RoomStreamer interface {
	ServeRoom(w http.ResponseWriter, r *http.Request, roomID string)
}

type Deps struct {
	Service      *svcarena.Service
	History      history.Repository
	HistoryLimit int
	WSPath       string
	WS           http.Handler
	Spectator    RoomStreamer
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	r.GET("/healthz", HealthHandler(d.Service))

	// --- HISTORY ENDPOINTS ---
	api := r.Group("/api")
	api.GET("/history/:accountId", HistoryHandler(d.History, d.HistoryLimit))
	api.GET("/games/:id", GameHandler(d.History))
	api.GET("/profile/:accountId", ProfileHandler(d.History))

	// --- ROOM ENDPOINTS ---
	api.GET("/rooms", RoomsHandler(d.Service))
	api.GET("/rooms/:id/board.png", BoardImageHandler(d.Service))
	if d.Spectator != nil {
		api.GET("/rooms/:id/events", SpectateHandler(d.Spectator))
	}

	if d.WS != nil {
		path := d.WSPath
		if path == "" {
			path = "/ws"
		}
		r.GET(path, gin.WrapH(d.WS))
	}
	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obslog.L().Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
