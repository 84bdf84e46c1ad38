package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/lastmile/coordinator/internal/common/errors"
	"github.com/lastmile/coordinator/internal/common/logger"
	ws "github.com/lastmile/coordinator/pkg/websocket"
)

// respondError writes err as a JSON error with its application status.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	appErr := apperrors.As(err)
	if appErr.HTTPStatus >= 500 {
		log.WithContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
}

// wsError converts err into a WebSocket error frame.
func wsError(msg *ws.Message, log *logger.Logger, err error) (*ws.Message, error) {
	appErr := apperrors.As(err)
	code := ws.ErrorCodeInternalError
	switch appErr.Code {
	case apperrors.ErrCodeBadRequest:
		code = ws.ErrorCodeBadRequest
	case apperrors.ErrCodeConflict:
		code = ws.ErrorCodeConflict
	case apperrors.ErrCodeNotFound:
		code = ws.ErrorCodeNotFound
	default:
		log.Error("ws request failed", zap.String("action", msg.Action), zap.Error(err))
	}
	return ws.NewError(msg.ID, msg.Action, code, appErr.Message, nil)
}
