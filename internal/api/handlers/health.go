package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/patternstore"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

type HealthHandler struct {
	db    *gorm.DB
	store patternstore.Store
}

// NewHealthHandler creates a health handler; db and store may be nil.
func NewHealthHandler(db *gorm.DB, store patternstore.Store) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

// HealthCheck reports the service and its backends. The service stays healthy
// without a pattern store since retrieval falls back to built-in patterns.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "healthy"}

	switch {
	case h.db == nil:
		body["database"] = "disabled"
	default:
		if err := pingDB(ctx, h.db); err != nil {
			body["database"] = "unreachable"
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}

	if h.store == nil {
		body["patterns"] = gin.H{"status": "disabled"}
	} else if n, err := h.store.Count(ctx); err != nil {
		body["patterns"] = gin.H{"status": "unreachable"}
	} else {
		body["patterns"] = gin.H{"status": "ok", "count": n}
	}

	c.JSON(status, body)
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
