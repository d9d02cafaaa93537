package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks store connectivity
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DispatchCounter reports how many campaigns have live timers
type DispatchCounter interface {
	Len() int
}

type HealthHandler struct {
	db       Pinger
	dispatch DispatchCounter
}

func NewHealthHandler(db Pinger, dispatch DispatchCounter) *HealthHandler {
	return &HealthHandler{db: db, dispatch: dispatch}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		log.Printf("Health check: database ping failed: %v", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":          status,
		"activeCampaigns": h.dispatch.Len(),
		"timestamp":       time.Now().UTC(),
	})
}
