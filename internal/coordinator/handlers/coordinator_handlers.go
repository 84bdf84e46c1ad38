// Package handlers exposes the coordinator over HTTP and WebSocket.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/lastmile/coordinator/internal/common/errors"
	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/coordinator/controller"
	"github.com/lastmile/coordinator/internal/coordinator/dto"
	ws "github.com/lastmile/coordinator/pkg/websocket"
)

type CoordinatorHandlers struct {
	controller *controller.CoordinatorController
	logger     *logger.Logger
}

func NewCoordinatorHandlers(ctrl *controller.CoordinatorController, log *logger.Logger) *CoordinatorHandlers {
	return &CoordinatorHandlers{
		controller: ctrl,
		logger:     log.WithFields(zap.String("component", "coordinator-handlers")),
	}
}

// RegisterRoutes mounts the coordinator API on router and dispatcher. Either
// may be nil.
func RegisterRoutes(router *gin.Engine, dispatcher *ws.Dispatcher, ctrl *controller.CoordinatorController, log *logger.Logger) *CoordinatorHandlers {
	handlers := NewCoordinatorHandlers(ctrl, log)
	if router != nil {
		handlers.registerHTTP(router)
	}
	if dispatcher != nil {
		handlers.registerWS(dispatcher)
	}
	return handlers
}

func (h *CoordinatorHandlers) registerHTTP(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.GET("/state", h.httpGetState)
	api.GET("/messages", h.httpListMessages)
	api.POST("/messages", h.httpSendMessage)
	api.POST("/inquiries/driver-delay", h.httpReportDriverDelay)
	api.GET("/drivers", h.httpListDrivers)
	api.GET("/drivers/summary", h.httpDriverSummary)
	api.GET("/drivers/positions", h.httpDriverPositions)
	api.GET("/drivers/:id", h.httpGetDriver)
	api.GET("/orders", h.httpListOrders)
	api.GET("/logs", h.httpListLogs)
	api.GET("/reasoning", h.httpGetReasoning)
	api.GET("/quick-actions", h.httpQuickActions)
}

func (h *CoordinatorHandlers) httpGetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.GetState(c.Request.Context()))
}

func (h *CoordinatorHandlers) httpListMessages(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.ListMessages(c.Request.Context()))
}

func (h *CoordinatorHandlers) httpSendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperrors.BadRequest("invalid request body", err))
		return
	}
	resp, err := h.controller.SendMessage(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *CoordinatorHandlers) httpReportDriverDelay(c *gin.Context) {
	var req dto.DriverDelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperrors.BadRequest("invalid request body", err))
		return
	}
	resp, err := h.controller.ReportDriverDelay(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *CoordinatorHandlers) httpListDrivers(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.ListDrivers(c.Request.Context()))
}

func (h *CoordinatorHandlers) httpGetDriver(c *gin.Context) {
	resp, err := h.controller.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CoordinatorHandlers) httpDriverSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.DriverSummary(c.Request.Context()))
}

func (h *CoordinatorHandlers) httpDriverPositions(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.DriverPositions(c.Request.Context()))
}

func (h *CoordinatorHandlers) httpListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.ListOrders(c.Request.Context()))
}

func (h *CoordinatorHandlers) httpListLogs(c *gin.Context) {
	var req dto.ListLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, h.logger, apperrors.BadRequest("invalid query", err))
		return
	}
	resp, err := h.controller.ListLogs(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CoordinatorHandlers) httpGetReasoning(c *gin.Context) {
	resp, err := h.controller.GetReasoning(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CoordinatorHandlers) httpQuickActions(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.QuickActions(c.Request.Context()))
}
