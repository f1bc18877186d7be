package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"geolink-go/internal/apperrors"
	"geolink-go/internal/dto"
	"geolink-go/internal/service"
	"geolink-go/internal/workflow"
	"geolink-go/response"
)

var (
	errPageParam = errors.New("error.page_param_invalid")
	errSizeParam = errors.New("error.size_param_invalid")
)

// executeTimeout bounds one detached workflow execution, covering every
// step's retries.
const executeTimeout = 15 * time.Minute

// EvaluationHandler triggers evaluation workflow runs and exposes their
// state.
type EvaluationHandler struct {
	orchestrator *workflow.Orchestrator
	service      *service.EvaluationService
	logger       *zap.Logger
}

func NewEvaluationHandler(orchestrator *workflow.Orchestrator, evaluationService *service.EvaluationService, logger *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		orchestrator: orchestrator,
		service:      evaluationService,
		logger:       logger,
	}
}

// Trigger starts one evaluation run and returns its identifier. The
// workflow executes asynchronously; its state is observable via GetRun.
func (h *EvaluationHandler) Trigger(c *gin.Context) {
	var trigger dto.EvaluationTrigger
	if err := c.ShouldBindJSON(&trigger); err != nil {
		_ = c.Error(apperrors.InvalidTriggerPayloadError(err))
		return
	}

	run, err := h.orchestrator.Start(c.Request.Context(), trigger)
	if err != nil {
		_ = c.Error(err)
		return
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), executeTimeout)
		defer cancel()
		if execErr := h.orchestrator.Execute(runCtx, run); execErr != nil {
			h.logger.Warn("Evaluation run did not complete",
				zap.String("run_id", run.RunID),
				zap.Error(execErr))
		}
	}()

	c.JSON(http.StatusAccepted, response.OK(gin.H{"runId": run.RunID}, "Evaluation started"))
}

// GetRun returns the checkpoint state of one run.
func (h *EvaluationHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("runId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response.OK(run, "success"))
}

// ListByLink returns a page of evaluation outcomes for a link.
func (h *EvaluationHandler) ListByLink(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		_ = c.Error(apperrors.InvalidRequestError(err.Error()))
		return
	}

	pageResp, listErr := h.service.ListByLink(c.Request.Context(), c.Param("linkId"), page, size)
	if listErr != nil {
		_ = c.Error(listErr)
		return
	}

	c.JSON(http.StatusOK, response.OK(pageResp, "success"))
}
