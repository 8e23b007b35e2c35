package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	corearena "github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/history"
	"github.com/park285/cheese-arena/internal/obslog"
	svcarena "github.com/park285/cheese-arena/internal/service/arena"
	"go.uber.org/zap"
)

const maxHistoryLimit = 100

func HealthHandler(svc *svcarena.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, players := svc.Registry().Counts()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": rooms, "players": players})
	}
}

// HistoryHandler lists an account's concluded games, newest first.
func HistoryHandler(repo history.Repository, defaultLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history disabled"})
			return
		}
		limit := defaultLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		if limit <= 0 || limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		accountID := strings.TrimSpace(c.Param("accountId"))
		games, err := repo.GetRecentGames(c.Request.Context(), accountID, limit)
		if err != nil {
			internalError(c, "history_list_error", err)
			return
		}
		if games == nil {
			games = []*history.GameRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "games": games})
	}
}

func GameHandler(repo history.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history disabled"})
			return
		}
		g, err := repo.GetGame(c.Request.Context(), c.Param("id"))
		if err != nil {
			internalError(c, "history_get_error", err)
			return
		}
		if g == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusOK, g)
	}
}

func ProfileHandler(repo history.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history disabled"})
			return
		}
		p, err := repo.GetProfile(c.Request.Context(), c.Param("accountId"))
		if err != nil {
			internalError(c, "profile_get_error", err)
			return
		}
		if p == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

type roomSummary struct {
	ID        string               `json:"id"`
	State     corearena.State      `json:"state"`
	White     *corearena.PlayerRef `json:"white,omitempty"`
	Black     *corearena.PlayerRef `json:"black,omitempty"`
	Turn      string               `json:"turn"`
	MoveCount int                  `json:"move_count"`
	CreatedAt time.Time            `json:"created_at"`
}

// RoomsHandler lists live rooms, oldest first.
func RoomsHandler(svc *svcarena.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		snaps, err := svc.ActiveRooms(c.Request.Context())
		if err != nil {
			internalError(c, "room_list_error", err)
			return
		}
		out := make([]roomSummary, 0, len(snaps))
		for _, s := range snaps {
			out = append(out, roomSummary{
				ID:        s.ID,
				State:     s.State,
				White:     s.White,
				Black:     s.Black,
				Turn:      s.Turn.String(),
				MoveCount: len(s.Moves),
				CreatedAt: s.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"rooms": out})
	}
}

// BoardImageHandler renders a live room, including rooms held by another
// instance. ?flip=true shows black at the bottom.
func BoardImageHandler(svc *svcarena.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svc.RoomSnapshot(c.Request.Context(), c.Param("id"))
		if errors.Is(err, corearena.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if err != nil {
			internalError(c, "room_get_error", err)
			return
		}
		flip, _ := strconv.ParseBool(c.DefaultQuery("flip", "false"))
		img, err := svc.BoardImage(c.Request.Context(), snap, flip)
		if err != nil {
			internalError(c, "board_render_error", err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", img)
	}
}

// SpectateHandler hands the connection to the room stream.
func SpectateHandler(s RoomStreamer) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.ServeRoom(c.Writer, c.Request, c.Param("id"))
	}
}

func internalError(c *gin.Context, event string, err error) {
	obslog.L().Error(event, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
