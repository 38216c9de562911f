package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pricehawk/internal/store"
)

// searchRequest 搜索接口的请求参数。
type searchRequest struct {
	Query   string   `json:"query" form:"query" binding:"required"`
	Sources []string `json:"sources" form:"sources"`
	Sort    string   `json:"sort" form:"sort"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	products, err := s.search.PerformSearch(c.Request.Context(), req.Query, req.Sources, req.Sort)
	if err != nil {
		s.logger.Error("search results not fully persisted", "query", req.Query, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to persist search results"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"count":    len(products),
		"products": products,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	productID := c.Param("id")
	if _, err := s.store.GetProduct(c.Request.Context(), productID); err != nil {
		s.respondStoreError(c, err)
		return
	}

	var from, to time.Time
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
	}

	history, err := s.store.History(c.Request.Context(), productID, from, to)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"count":      len(history),
		"history":    history,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	productID := c.Param("id")
	if _, err := s.store.GetProduct(c.Request.Context(), productID); err != nil {
		s.respondStoreError(c, err)
		return
	}

	stats, err := s.store.Stats(c.Request.Context(), productID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"stats":      stats,
	})
}

// trackRequest 关注开关的请求参数。
type trackRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

func (s *Server) handleTrack(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	tracked, err := s.store.Toggle(c.Request.Context(), req.ProductID)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": req.ProductID, "tracked": tracked})
}

func (s *Server) handleTracked(c *gin.Context) {
	views, err := s.store.ListTracked(c.Request.Context())
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(views), "tracked": views})
}

// createAlertRequest 创建告警的请求参数。
type createAlertRequest struct {
	ProductID   string          `json:"product_id" binding:"required"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Condition   string          `json:"condition" binding:"required"`
	Email       string          `json:"email" binding:"required,email"`
}

func (s *Server) handleCreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alertID, err := s.alerts.CreateOrUpdateAlert(c.Request.Context(), req.ProductID, req.TargetPrice, req.Condition, req.Email)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_id": alertID})
}

func (s *Server) handleDeleteAlert(c *gin.Context) {
	alertID := c.Param("id")
	if err := s.alerts.Deactivate(c.Request.Context(), alertID); err != nil {
		s.respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": alertID})
}

func (s *Server) handleRecentSearches(c *gin.Context) {
	recent, err := s.store.RecentSearches(c.Request.Context(), s.cfg.App.RecentSearches)
	if err != nil {
		s.respondStoreError(c, err)
		return
	}
	queries := make([]string, 0, len(recent))
	for _, r := range recent {
		queries = append(queries, r.Query)
	}
	c.JSON(http.StatusOK, gin.H{"searches": queries})
}

// respondStoreError 把存储层错误映射为 HTTP 状态码。
func (s *Server) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, store.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, store.ErrNoObservations):
		c.JSON(http.StatusNotFound, gin.H{"error": "no price history for product"})
	case errors.Is(err, store.ErrInvalidTargetPrice):
		c.JSON(http.StatusBadRequest, gin.H{"error": "target price must be positive"})
	case errors.Is(err, store.ErrInvalidCondition):
		c.JSON(http.StatusBadRequest, gin.H{"error": "condition must be above or below"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
