package middleware

import (
	stderrors "errors"
	"net/http"

	"camcapture/internal/core/domain"
	"camcapture/pkg/errors"
	"camcapture/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ToAppError maps session and export errors onto HTTP-facing application
// errors. Errors that are already AppErrors pass through.
func ToAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case stderrors.Is(err, domain.ErrAcquisitionPending):
		return errors.NewBusyError("camera acquisition in progress")
	case stderrors.Is(err, domain.ErrAcquisitionFailed):
		return errors.NewAcquisitionError(err).WithContext("reason", err.Error())
	case stderrors.Is(err, domain.ErrNoActiveStream):
		return errors.NewConflictError("no active stream")
	case stderrors.Is(err, domain.ErrInvalidState):
		return errors.NewConflictError(err.Error())
	case stderrors.Is(err, domain.ErrStreamEnded):
		return errors.NewConflictError("stream ended")
	case stderrors.Is(err, domain.ErrInvalidTier),
		stderrors.Is(err, domain.ErrInvalidFilter),
		stderrors.Is(err, domain.ErrInvalidArtifactName):
		return errors.NewInvalidInputError(err.Error())
	case stderrors.Is(err, domain.ErrArtifactNotFound):
		return errors.NewNotFoundError("artifact")
	case stderrors.Is(err, domain.ErrSinkUnavailable):
		return errors.WrapError(err, errors.ErrCodeServiceUnavailable, "download sink unavailable", http.StatusServiceUnavailable)
	case stderrors.Is(err, domain.ErrTranscoderMissing),
		stderrors.Is(err, domain.ErrTranscodeFailed):
		return errors.WrapError(err, errors.ErrCodeBadGateway, err.Error(), http.StatusBadGateway)
	}
	return nil
}

// ErrorHandlerMiddleware turns the last error attached to the gin context
// into a structured JSON response.
func ErrorHandlerMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		if appErr := ToAppError(err); appErr != nil {
			fields := []zap.Field{
				zap.String("code", string(appErr.Code)),
				zap.Int("status", appErr.HTTPStatus),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			}
			if appErr.HTTPStatus < http.StatusInternalServerError {
				cl.LogWarn(ctx, "client_error", append(fields, zap.Error(err))...)
			} else {
				cl.LogError(ctx, err, "application error", fields...)
			}

			c.JSON(appErr.HTTPStatus, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
				"details": appErr.Context,
			})
			return
		}

		cl.LogError(ctx, err, "unhandled error",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(errors.ErrCodeInternal),
			"message": "Internal server error",
		})
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				appErr := errors.NewInternalError("Internal server error")
				c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
					"error":   string(appErr.Code),
					"message": appErr.Message,
				})
			}
		}()

		c.Next()
	}
}
