package handlers

import (
	"context"

	apperrors "github.com/lastmile/coordinator/internal/common/errors"
	"github.com/lastmile/coordinator/internal/coordinator/dto"
	ws "github.com/lastmile/coordinator/pkg/websocket"
)

func (h *CoordinatorHandlers) registerWS(dispatcher *ws.Dispatcher) {
	dispatcher.RegisterFunc(ws.ActionCoordinatorState, h.wsGetState)
	dispatcher.RegisterFunc(ws.ActionMessageSend, h.wsSendMessage)
	dispatcher.RegisterFunc(ws.ActionInquiryDelay, h.wsReportDriverDelay)
	dispatcher.RegisterFunc(ws.ActionDriverList, h.wsListDrivers)
	dispatcher.RegisterFunc(ws.ActionDriverGet, h.wsGetDriver)
	dispatcher.RegisterFunc(ws.ActionDriverSummary, h.wsDriverSummary)
	dispatcher.RegisterFunc(ws.ActionDriverPositions, h.wsDriverPositions)
	dispatcher.RegisterFunc(ws.ActionLogList, h.wsListLogs)
	dispatcher.RegisterFunc(ws.ActionReasoningGet, h.wsGetReasoning)
}

func (h *CoordinatorHandlers) wsGetState(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	return ws.NewResponse(msg.ID, msg.Action, h.controller.GetState(ctx))
}

func (h *CoordinatorHandlers) wsSendMessage(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.SendMessageRequest
	if err := msg.ParsePayload(&req); err != nil {
		return wsError(msg, h.logger, apperrors.BadRequest("Invalid payload: "+err.Error(), err))
	}
	resp, err := h.controller.SendMessage(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *CoordinatorHandlers) wsReportDriverDelay(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.DriverDelayRequest
	if err := msg.ParsePayload(&req); err != nil {
		return wsError(msg, h.logger, apperrors.BadRequest("Invalid payload: "+err.Error(), err))
	}
	resp, err := h.controller.ReportDriverDelay(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *CoordinatorHandlers) wsListDrivers(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	return ws.NewResponse(msg.ID, msg.Action, h.controller.ListDrivers(ctx))
}

func (h *CoordinatorHandlers) wsGetDriver(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.GetDriverRequest
	if err := msg.ParsePayload(&req); err != nil {
		return wsError(msg, h.logger, apperrors.BadRequest("Invalid payload: "+err.Error(), err))
	}
	resp, err := h.controller.GetDriver(ctx, req.DriverID)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *CoordinatorHandlers) wsDriverSummary(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	return ws.NewResponse(msg.ID, msg.Action, h.controller.DriverSummary(ctx))
}

func (h *CoordinatorHandlers) wsDriverPositions(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	return ws.NewResponse(msg.ID, msg.Action, h.controller.DriverPositions(ctx))
}

func (h *CoordinatorHandlers) wsListLogs(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.ListLogsRequest
	if err := msg.ParsePayload(&req); err != nil {
		return wsError(msg, h.logger, apperrors.BadRequest("Invalid payload: "+err.Error(), err))
	}
	resp, err := h.controller.ListLogs(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *CoordinatorHandlers) wsGetReasoning(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	resp, err := h.controller.GetReasoning(ctx)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}
