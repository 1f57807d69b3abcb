package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"replicated-log/internal/apierr"
	"replicated-log/internal/coordinator"
	"replicated-log/internal/health"
)

// PrimaryHandler serves the primary's client-facing HTTP surface.
type PrimaryHandler struct {
	coordinator *coordinator.Coordinator
	prober      *health.Prober
	logger      *zap.Logger
}

// NewPrimaryHandler creates a PrimaryHandler.
func NewPrimaryHandler(c *coordinator.Coordinator, prober *health.Prober, logger *zap.Logger) *PrimaryHandler {
	return &PrimaryHandler{coordinator: c, prober: prober, logger: logger}
}

// Register mounts the primary's routes on r.
func (h *PrimaryHandler) Register(r *gin.Engine) {
	r.POST("/messages", h.postMessage)
	r.GET("/messages", h.getMessages)
	r.GET("/health", h.getHealth)
}

type postMessageRequest struct {
	Msg string `json:"msg" binding:"required"`
	W   *int   `json:"w"`
}

// postMessage handles POST /messages: {"msg": "<string>", "w": <int?>}.
func (h *PrimaryHandler) postMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MalformedRequest", "message": err.Error()})
		return
	}

	w := h.coordinator.DefaultWriteConcern()
	if req.W != nil {
		w = *req.W
	}

	res, err := h.coordinator.Append(c.Request.Context(), req.Msg, w)
	if err != nil {
		status := apierr.StatusFor(err)
		if h.logger != nil {
			h.logger.Warn("append rejected", zap.String("code", apierr.CodeFor(err)), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": apierr.CodeFor(err), "message": err.Error()})
		return
	}

	acks := make([]gin.H, 0, len(res.Acks))
	for _, addr := range res.Acks {
		acks = append(acks, gin.H{"secondary": addr, "ack": true})
	}

	c.JSON(http.StatusCreated, gin.H{
		"messages":    res.Messages,
		"acks":        acks,
		"w":           res.W,
		"duration_ms": res.DurationMs,
		"seq":         res.Seq,
	})
}

// getMessages handles GET /messages.
func (h *PrimaryHandler) getMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": h.coordinator.Snapshot()})
}

// getHealth handles GET /health.
func (h *PrimaryHandler) getHealth(c *gin.Context) {
	var secondaries []string
	var statuses []gin.H
	if h.prober != nil {
		for _, st := range h.prober.Statuses() {
			secondaries = append(secondaries, st.Address)
			statuses = append(statuses, gin.H{
				"addr":         st.Address,
				"healthy":      st.Healthy,
				"last_seen_ms": st.LastSeenMs,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"count":              h.coordinator.Size(),
		"secondaries":        secondaries,
		"secondary_statuses": statuses,
	})
}

