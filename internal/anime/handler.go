package anime

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"anisync/internal/jikan"
)

// UpstreamBrowser is the read-only upstream surface proxied to API callers.
type UpstreamBrowser interface {
	GetTopAnime(ctx context.Context, limit int) ([]jikan.Anime, error)
	SearchAnime(ctx context.Context, q jikan.SearchQuery) ([]jikan.Anime, error)
}

// SyncScheduler accepts sync work for asynchronous execution.
type SyncScheduler interface {
	EnqueueItemSync(malID int64) (string, error)
	EnqueueBulkSync(limit int) (string, error)
}

type Handler struct {
	Service  *Service
	Repo     *Repo
	Upstream UpstreamBrowser
	Jobs     SyncScheduler
}

func NewHandler(svc *Service, repo *Repo, upstream UpstreamBrowser, jobs SyncScheduler) *Handler {
	return &Handler{Service: svc, Repo: repo, Upstream: upstream, Jobs: jobs}
}

// RegisterRoutes wires the public catalog surface. The /top and /search
// prefixes mirror the upstream API shape.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/anime", h.list)              // stored catalog
	r.GET("/anime/:mal_id", h.getByMAL)  // get-or-fetch
	r.GET("/top/anime", h.top)           // upstream proxy
	r.GET("/search/anime", h.search)     // upstream proxy
}

// RegisterSyncRoutes wires the authenticated sync triggers.
func (h *Handler) RegisterSyncRoutes(rg *gin.RouterGroup) {
	rg.POST("/anime/:mal_id/sync", h.enqueueItem)
	rg.POST("/sync/top", h.enqueueBulk)
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if s := c.Query("min_score"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			q.MinScore = f
		}
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(items),
		"items": items,
	})
}

func (h *Handler) getByMAL(c *gin.Context) {
	malID, ok := malIDParam(c)
	if !ok {
		return
	}

	item, err := h.Service.GetOrFetch(c.Request.Context(), malID)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) top(c *gin.Context) {
	limit := parseInt(c.Query("limit"), 10)
	top, err := h.Upstream.GetTopAnime(c.Request.Context(), limit)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": top})
}

func (h *Handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q required"})
		return
	}

	results, err := h.Upstream.SearchAnime(c.Request.Context(), jikan.SearchQuery{
		Q:      q,
		Page:   parseInt(c.Query("page"), 1),
		Limit:  parseInt(c.Query("limit"), 25),
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Season: c.Query("season"),
	})
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results})
}

func (h *Handler) enqueueItem(c *gin.Context) {
	malID, ok := malIDParam(c)
	if !ok {
		return
	}

	jobID, err := h.Jobs.EnqueueItemSync(malID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

type bulkSyncReq struct {
	Limit int `json:"limit"`
}

func (h *Handler) enqueueBulk(c *gin.Context) {
	var req bulkSyncReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-100"})
		return
	}

	jobID, err := h.Jobs.EnqueueBulkSync(req.Limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func malIDParam(c *gin.Context) (int64, bool) {
	malID, err := strconv.ParseInt(c.Param("mal_id"), 10, 64)
	if err != nil || malID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mal_id"})
		return 0, false
	}
	return malID, true
}

// writeUpstreamError maps the fetch/normalize taxonomy onto HTTP statuses.
func writeUpstreamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jikan.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found upstream"})
	case errors.Is(err, jikan.ErrRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "upstream rejected request"})
	case errors.Is(err, jikan.ErrUnavailable), errors.Is(err, ErrMalformedPayload):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
	}
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
