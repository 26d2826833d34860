package middleware

import (
	"errors"

	apperrors "medcom_capture/pkg/errors"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var apiErr *apperrors.APIError
		if errors.As(err, &apiErr) {
			c.JSON(apiErr.Code, apiErr)
			return
		}

		statusCode := apperrors.HTTPStatusFromError(err)
		body := apperrors.NewAPIError(err.Error(), statusCode)
		var ce *apperrors.CaptureError
		if errors.As(err, &ce) {
			body.Kind = ce.Kind
		}
		c.JSON(statusCode, body)
	}
}
