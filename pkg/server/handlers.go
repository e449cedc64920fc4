package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/agent"
	"github.com/chaosswarm/chaosswarm/pkg/api"
	"github.com/chaosswarm/chaosswarm/pkg/coordinator"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
)

// Submitter runs submissions; *coordinator.Coordinator implements it
type Submitter interface {
	Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error)
}

// Executor runs local actions; *agent.Executor implements it
type Executor interface {
	Execute(ctx context.Context, req api.ExecuteRequest) (api.ExecutionResult, error)
}

func health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func submit(svc Submitter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req api.SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.SubmitResponse{
				Status:  api.StatusFailure,
				Message: "invalid request: " + err.Error(),
			})
			return
		}

		ctx := c.Request.Context()
		resp, err := svc.Submit(ctx, req)
		if err != nil {
			status := http.StatusInternalServerError
			if coordinator.IsClientError(err) {
				status = http.StatusBadRequest
			} else {
				observability.ContextLogger(ctx, logger).Error("Submission aborted", zap.Error(err))
			}
			c.JSON(status, api.SubmitResponse{Status: api.StatusFailure, Message: err.Error()})
			return
		}

		if resp.Status != api.StatusSuccess {
			c.JSON(http.StatusInternalServerError, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func execute(svc Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req api.ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.Failure("", "invalid request: "+err.Error()))
			return
		}

		result, err := svc.Execute(c.Request.Context(), req)
		if err != nil {
			// Rejected before anything ran
			message := err.Error()
			if !errors.Is(err, agent.ErrUnknownAction) {
				message = "invalid request: " + message
			}
			c.JSON(http.StatusBadRequest, api.Failure(req.Container, message))
			return
		}

		if !result.Succeeded() {
			c.JSON(http.StatusInternalServerError, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
