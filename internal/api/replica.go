package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"replicated-log/internal/metrics"
	"replicated-log/internal/replica"
)

// ReplicaHandler serves a secondary's HTTP surface.
type ReplicaHandler struct {
	store   *replica.Store
	metrics *metrics.Replica
	logger  *zap.Logger
}

// NewReplicaHandler creates a ReplicaHandler.
func NewReplicaHandler(s *replica.Store, m *metrics.Replica, logger *zap.Logger) *ReplicaHandler {
	return &ReplicaHandler{store: s, metrics: m, logger: logger}
}

// Register mounts the replica's routes on r.
func (h *ReplicaHandler) Register(r *gin.Engine) {
	r.POST("/replicate", h.postReplicate)
	r.GET("/messages", h.getMessages)
	r.GET("/health", h.getHealth)
}

type replicateRequest struct {
	Msg string `json:"msg" binding:"required"`
	Seq int64  `json:"seq" binding:"required"`
}

// postReplicate handles POST /replicate: {"msg":"<string>", "seq":<int>}.
func (h *ReplicaHandler) postReplicate(c *gin.Context) {
	var req replicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MalformedRequest", "message": err.Error()})
		return
	}
	if req.Seq < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MalformedRequest", "message": "seq must be positive"})
		return
	}

	duplicate := h.store.Replicate(req.Seq, req.Msg)

	if h.metrics != nil {
		h.metrics.AppliedLength.Set(float64(h.store.AppliedLen()))
		h.metrics.PendingGapsSize.Set(float64(h.store.PendingLen()))
		if duplicate {
			h.metrics.DuplicateTotal.Inc()
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "duplicate": duplicate})
}

// getMessages handles GET /messages.
func (h *ReplicaHandler) getMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": h.store.Snapshot()})
}

// getHealth handles GET /health.
func (h *ReplicaHandler) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"delay_ms": h.store.Delay().Milliseconds(),
		"count":    h.store.AppliedLen(),
	})
}
