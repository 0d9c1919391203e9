package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/adharris/fifu-queue/pkg/common/apperr"
	"github.com/adharris/fifu-queue/pkg/common/http/request"
	"github.com/adharris/fifu-queue/pkg/common/http/response"
)

// HandlerFunc is the generic function signature
type HandlerFunc[T any, R any] func(context.Context, *T) (R, error)

// Wrap converts a generic handler to a Gin handler. Errors that are not an
// *apperr.AppError are reported as "<service> failed to process" with HTTP 500.
func Wrap[T any, R any](service string, h HandlerFunc[T, R]) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := request.ParseRequest[T](c)
		if err != nil {
			response.Error(c, err)
			return
		}

		res, err := h(c.Request.Context(), req)
		if err != nil {
			var appErr *apperr.AppError
			if !errors.As(err, &appErr) {
				err = apperr.MapError(service, err, response.CodeInternalServer, apperr.MsgProcessFailed, http.StatusInternalServerError)
			}
			response.Error(c, err)
			return
		}

		response.OK(c, res)
	}
}
