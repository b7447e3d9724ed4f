package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultpilot/vaultpilot/internal/middleware"
	"github.com/vaultpilot/vaultpilot/internal/model"
	"github.com/vaultpilot/vaultpilot/internal/optimizer"
	"github.com/vaultpilot/vaultpilot/internal/pkg/apperrors"
	"github.com/vaultpilot/vaultpilot/internal/relayer"
)

type RebalanceHandler struct {
	svc *relayer.Service
	opt *optimizer.Optimizer
}

func NewRebalanceHandler(svc *relayer.Service, opt *optimizer.Optimizer) *RebalanceHandler {
	return &RebalanceHandler{svc: svc, opt: opt}
}

// Submit queues a signed payload. Verification happens in the worker; a bad
// payload shows up as a failed job, matching the submit-then-poll contract.
func (h *RebalanceHandler) Submit(c *gin.Context) {
	var req model.SubmitRebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	job, err := h.svc.Submit(c.Request.Context(), req.VaultID, req.Payload, req.Signature)
	if err != nil {
		if errors.Is(err, relayer.ErrQueueFull) {
			c.Error(apperrors.New(apperrors.ErrInternal, "relayer queue is full", err))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}

	middleware.AddAuditContext(c, "job_id", job.ID)
	middleware.AddAuditContext(c, "vault_id", job.VaultID)
	c.JSON(http.StatusAccepted, jobResponse(job))
}

func (h *RebalanceHandler) Status(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		c.Error(apperrors.NewInvalidRequest("job id is required"))
		return
	}

	job, err := h.svc.Status(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, relayer.ErrJobNotFound) {
			c.Error(apperrors.NewNotFound("job not found"))
			return
		}
		c.Error(apperrors.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, jobResponse(job))
}

// Recommend runs the optimizer against a vault and returns a signed payload
// when the drift warrants a rebalance. 204 means "nothing to do".
func (h *RebalanceHandler) Recommend(c *gin.Context) {
	id, ok := vaultID(c)
	if !ok {
		return
	}

	rec, err := h.opt.Evaluate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, optimizer.ErrBelowThreshold) {
			c.Status(http.StatusNoContent)
			return
		}
		if errors.Is(err, optimizer.ErrNoPriceData) || errors.Is(err, optimizer.ErrInsufficientData) {
			c.Error(apperrors.New(apperrors.ErrInternal, "price source unavailable", err))
			return
		}
		c.Error(coreError(err))
		return
	}

	middleware.AddAuditContext(c, "vault_id", id)
	middleware.AddAuditContext(c, "drift_bps", rec.DriftBps)
	c.JSON(http.StatusOK, rec)
}

func jobResponse(job *relayer.Job) model.JobResponse {
	return model.JobResponse{
		JobID:   job.ID,
		VaultID: job.VaultID,
		Status:  string(job.Status),
		TxHash:  job.TxHash,
		Error:   job.Error,
	}
}
