package controllerImp

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var appStart = time.Now()

// ClassifierState reports whether the shared classifier handle is built.
type ClassifierState interface {
	Loaded() bool
}

type HealthCtrl struct {
	db       *gorm.DB
	cls      ClassifierState
	endpoint string
}

// NewHealthCtrl builds the health handler. An empty endpoint means the
// built-in mock classifier is in use.
func NewHealthCtrl(db *gorm.DB, cls ClassifierState, endpoint string) *HealthCtrl {
	return &HealthCtrl{db: db, cls: cls, endpoint: endpoint}
}

func (h *HealthCtrl) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 800*time.Millisecond)
	defer cancel()

	dbOK := true
	dbErr := ""
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil {
			dbOK = false
			dbErr = "db.DB(): " + err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbOK = false
			dbErr = "ping: " + err.Error()
		}
	} else {
		dbOK = false
		dbErr = "gorm db is nil"
	}

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}

	type sub struct {
		OK  bool   `json:"ok"`
		Err string `json:"err,omitempty"`
	}

	mode := "http"
	if h.endpoint == "" {
		mode = "mock"
	}
	loaded := false
	if h.cls != nil {
		loaded = h.cls.Loaded()
	}

	resp := map[string]any{
		"status":     map[string]any{"ok": dbOK},
		"uptime_sec": int(time.Since(appStart).Seconds()),
		"checks": map[string]any{
			"database": sub{OK: dbOK, Err: dbErr},
			"classifier": map[string]any{
				"mode":     mode,
				"endpoint": h.endpoint,
				"loaded":   loaded,
			},
		},
		"time": time.Now().Format(time.RFC3339),
	}

	return c.JSON(status, resp)
}
