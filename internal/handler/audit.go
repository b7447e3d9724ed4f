package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vaultpilot/vaultpilot/internal/pkg/apperrors"
	"github.com/vaultpilot/vaultpilot/internal/service"
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List returns recent audit entries, newest first. limit defaults to 100,
// from/to are RFC3339 timestamps and only apply when a database repository
// is configured.
func (h *AuditHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.Error(apperrors.NewInvalidRequest("limit must be an integer between 1 and 1000"))
			return
		}
		limit = n
	}

	from, ok := parseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeQuery(c, "to")
	if !ok {
		return
	}

	entries, err := h.svc.List(c.Request.Context(), limit, from, to)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "failed to list audit logs", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(key + " must be an RFC3339 timestamp"))
		return nil, false
	}
	return &t, true
}
