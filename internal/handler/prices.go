package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/optimizer"
	"github.com/vaultpilot/vaultpilot/internal/pkg/apperrors"
)

// PriceHandler ingests price observations for the optimizer's feed.
type PriceHandler struct {
	feed *optimizer.MemoryPriceFeed
}

func NewPriceHandler(feed *optimizer.MemoryPriceFeed) *PriceHandler {
	return &PriceHandler{feed: feed}
}

func (h *PriceHandler) Record(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}

	var req model.PriceSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.Sign() <= 0 {
		c.Error(apperrors.NewInvalidRequest("price must be a positive decimal"))
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		ts, err = time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("timestamp must be RFC3339"))
			return
		}
	}

	h.feed.Record(id, optimizer.PriceSample{Price: price, Timestamp: ts})
	c.JSON(http.StatusAccepted, gin.H{"vault_id": id, "recorded": true})
}
