package watchlist

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"anisync/internal/auth"
	"anisync/internal/events"
	"anisync/pkg/models"
)

// AnimeLookup resolves MAL ids to stored rows and serves recommendations.
type AnimeLookup interface {
	GetByMALID(ctx context.Context, malID int64) (*models.Anime, error)
	Recommendations(ctx context.Context, userID string, limit int) ([]models.Anime, error)
}

// Broadcaster receives watchlist change events; may be nil.
type Broadcaster interface {
	BroadcastJSON(v any)
}

type Handler struct {
	Repo  *Repo
	Anime AnimeLookup
	Hub   Broadcaster
}

func NewHandler(repo *Repo, anime AnimeLookup, hub Broadcaster) *Handler {
	return &Handler{Repo: repo, Anime: anime, Hub: hub}
}

// RegisterRoutes wires the authenticated per-user list surface. The list is
// keyed by MAL id at the API edge and by surrogate id in storage.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me/list", h.list)
	rg.POST("/me/list", h.add)
	rg.PATCH("/me/list/:mal_id", h.update)
	rg.DELETE("/me/list/:mal_id", h.remove)
	rg.GET("/me/recommendations", h.recommendations)
}

func (h *Handler) list(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	status := models.WatchStatus(c.Query("status"))
	if status != "" && !models.ValidWatchStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	entries, err := h.Repo.List(c.Request.Context(), claims.UserID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

type addReq struct {
	MALID    int64              `json:"mal_id"`
	Status   models.WatchStatus `json:"status"`
	Score    *float64           `json:"score"`
	Progress *int               `json:"progress"`
}

func (h *Handler) add(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.MALID <= 0 || !models.ValidWatchStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mal_id and valid status required"})
		return
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 10) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be 0-10"})
		return
	}
	if req.Progress != nil && *req.Progress < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "progress must be >= 0"})
		return
	}

	item, err := h.Anime.GetByMALID(c.Request.Context(), req.MALID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "anime not in local catalog, sync it first"})
		return
	}

	entry, err := h.Repo.Add(c.Request.Context(), models.WatchlistEntry{
		UserID:   claims.UserID,
		AnimeID:  item.ID,
		Status:   req.Status,
		Score:    req.Score,
		Progress: req.Progress,
	})
	if err != nil {
		if errors.Is(err, ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "already in list"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add failed"})
		return
	}

	h.broadcast(events.TypeWatchlistUpdate, entry)
	c.JSON(http.StatusCreated, entry)
}

type updateReq struct {
	Status   *models.WatchStatus `json:"status"`
	Score    *float64            `json:"score"`
	Progress *int                `json:"progress"`
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	item, ok := h.resolveAnime(c)
	if !ok {
		return
	}

	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Status != nil && !models.ValidWatchStatus(*req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 10) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be 0-10"})
		return
	}
	if req.Progress != nil && *req.Progress < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "progress must be >= 0"})
		return
	}

	entry, err := h.Repo.Update(c.Request.Context(), claims.UserID, item.ID, UpdateFields{
		Status:   req.Status,
		Score:    req.Score,
		Progress: req.Progress,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not in list"})
		return
	}

	h.broadcast(events.TypeWatchlistUpdate, entry)
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) remove(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	item, ok := h.resolveAnime(c)
	if !ok {
		return
	}

	deleted, err := h.Repo.Delete(c.Request.Context(), claims.UserID, item.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not in list"})
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastJSON(events.WatchlistEvent{
			Type:    events.TypeWatchlistDelete,
			UserID:  claims.UserID,
			AnimeID: item.ID,
			At:      time.Now().UTC(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *Handler) recommendations(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	limit := 10
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, err := h.Anime.Recommendations(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recommendations failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}

func (h *Handler) resolveAnime(c *gin.Context) (*models.Anime, bool) {
	malID, err := strconv.ParseInt(c.Param("mal_id"), 10, 64)
	if err != nil || malID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mal_id"})
		return nil, false
	}
	item, err := h.Anime.GetByMALID(c.Request.Context(), malID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return nil, false
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "anime not found"})
		return nil, false
	}
	return item, true
}

func (h *Handler) broadcast(eventType string, e *models.WatchlistEntry) {
	if h.Hub == nil || e == nil {
		return
	}
	h.Hub.BroadcastJSON(events.WatchlistEvent{
		Type:    eventType,
		UserID:  e.UserID,
		AnimeID: e.AnimeID,
		Status:  string(e.Status),
		At:      time.Now().UTC(),
	})
}
