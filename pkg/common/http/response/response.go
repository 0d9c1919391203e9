package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/adharris/fifu-queue/pkg/common/apperr"
)

// Application codes carried in the response envelope.
const (
	CodeSuccess          = 2000
	CodeParamInvalid     = 4000
	CodeValidationFailed = 4220
	CodeInternalServer   = 5000
)

// Response is the JSON envelope for every reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK writes data with HTTP 200.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeSuccess, Message: "success", Data: data})
}

// Error writes err. An *apperr.AppError supplies its own code and status,
// anything else is a 500.
func Error(c *gin.Context, err error) {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.HTTPStatus, Response{Code: appErr.Code, Message: appErr.Error()})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: CodeInternalServer, Message: err.Error()})
}
